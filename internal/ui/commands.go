package ui

import (
	"regexp"
	"strings"
)

// Command 一条解析后的斜杠命令。Value 是第一个参数，
// Arg 是其余参数（/setting 这类两段式命令使用）。
type Command struct {
	Type  string
	Value string
	Arg   string
}

var commandPatterns = []struct {
	typ string
	re  *regexp.Regexp
}{
	{"agent", regexp.MustCompile(`(?i)^/agent\s+(\S+)$`)},
	{"model", regexp.MustCompile(`(?i)^/model\s+(\S+)$`)},
	{"mode", regexp.MustCompile(`(?i)^/mode\s+(\S+)$`)},
	{"setting", regexp.MustCompile(`(?i)^/setting\s+(\S+)(?:\s+(\S+))?$`)},
	{"examples", regexp.MustCompile(`(?i)^/examples$`)},
	{"help", regexp.MustCompile(`(?i)^/help$`)},
	{"clear", regexp.MustCompile(`(?i)^/clear$`)},
	{"exit", regexp.MustCompile(`(?i)^/exit$`)},
	{"quit", regexp.MustCompile(`(?i)^/quit$`)},
}

// ParseCommand 尝试解析一条命令；非命令输入返回 nil。
func ParseCommand(input string) *Command {
	input = strings.TrimSpace(input)
	for _, p := range commandPatterns {
		if m := p.re.FindStringSubmatch(input); m != nil {
			cmd := &Command{Type: p.typ}
			if len(m) > 1 {
				cmd.Value = m[1]
			}
			if len(m) > 2 {
				cmd.Arg = m[2]
			}
			return cmd
		}
	}
	return nil
}

// IsCommand 报告输入是否以斜杠开头。
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// HelpText /help 的输出。
const HelpText = `可用命令：

/agent gemini|ollama|huggingface|ark  切换 LLM 后端
/model <name>                          切换当前后端的模型
/mode general|web-ctf                  切换会话模式

/setting truncate on|off               长输出截断开关
/setting max-iterations <n>            每次执行的最大迭代数
/setting loop-detection on|off         重复动作检测开关

/examples                              查看内置练习题目
/help                                  显示本帮助
/clear                                 清屏
/exit 或 /quit                          退出

其他输入将作为目标交给当前 Agent 执行。
执行过程中按 Ctrl+C 可暂停并补充指引。`
