// Package modes 定义可选的会话模式。模式决定系统指令模板：
// 通用模式走基础模板，web-ctf 模式走渗透专用模板。
package modes

import (
	"strings"

	"github.com/wwwzy/redagent/internal/prompts"
)

// Mode 是一种会话模式的静态配置。SystemContext 保留模板占位符，
// 渲染推迟到工具清单确定之后。
type Mode struct {
	Name          string
	DisplayName   string
	Description   string
	SystemContext string
}

// WebCTF Web 夺旗模式。
var WebCTF = Mode{
	Name:          "web-ctf",
	DisplayName:   "Web CTF",
	Description:   "Specialized mode for Web Capture The Flag challenges",
	SystemContext: prompts.WebCTFSystemPrompt,
}

// General 默认的通用求解模式。
var General = Mode{
	Name:          "general",
	DisplayName:   "General",
	Description:   "General problem solving with tools",
	SystemContext: prompts.BaseSystemPrompt,
}

// 同一模式接受若干别名，空格归一为连字符后查表。
var registry = map[string]Mode{
	"general": General,
	"web-ctf": WebCTF,
	"web_ctf": WebCTF,
	"webctf":  WebCTF,
}

// Get 按名称取模式，大小写不敏感，空格视作连字符。
func Get(name string) (Mode, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	m, ok := registry[key]
	return m, ok
}

// List 返回对外展示的模式名（不含别名）。
func List() []string {
	return []string{"general", "web-ctf"}
}
