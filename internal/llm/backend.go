// Package llm 封装各 LLM 提供方为统一的后端接口。
// 循环控制器只看到 Call；消息格式转换与采样参数在这里收口。
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/llms"

	"github.com/wwwzy/redagent/internal/agent"
	"github.com/wwwzy/redagent/internal/config"
)

// Backend 在控制器所需操作之上补充模型切换能力，供 /model 命令用。
type Backend interface {
	agent.Backend
	Model() string
	SetModel(name string) error
}

// New 按名称构造后端。名称大小写不敏感。
func New(ctx context.Context, name string, cfg *config.Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return NewGemini(ctx, cfg.Gemini)
	case "ollama":
		return NewOllama(cfg.Ollama)
	case "huggingface", "hf":
		return NewHuggingFace(cfg.HuggingFace)
	case "ark":
		return NewArk(ctx, cfg.Ark)
	default:
		return nil, fmt.Errorf("unknown agent %q (expected gemini, ollama, huggingface or ark)", name)
	}
}

// Names 返回可选后端名，供命令提示与补全。
func Names() []string {
	return []string{"gemini", "ollama", "huggingface", "ark"}
}

// toMessageContents 把对话历史转成 langchaingo 的消息格式，
// 末尾追加本轮提示词作为 user 消息。
func toMessageContents(history []*schema.Message, prompt string) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history)+1)
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case schema.Assistant:
			role = llms.ChatMessageTypeAI
		case schema.System:
			role = llms.ChatMessageTypeSystem
		}
		out = append(out, llms.TextParts(role, msg.Content))
	}
	out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
	return out
}

// firstChoice 取补全的首个候选文本。
func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Content, nil
}

// Availability 记录启动时各提供方的可用性探测结果。
type Availability struct {
	Gemini      bool
	Ollama      bool
	HuggingFace bool
	Ark         bool
}

// Any 报告是否至少有一个提供方可用。
func (a Availability) Any() bool {
	return a.Gemini || a.Ollama || a.HuggingFace || a.Ark
}

// CheckAvailability 探测各提供方。Gemini/HuggingFace/Ark 只看配置是否
// 齐全；Ollama 实际请求一次 /api/tags 确认服务在跑。
func CheckAvailability(cfg *config.Config) Availability {
	var a Availability
	a.Gemini = cfg.Gemini.APIKey != "" && cfg.Gemini.APIKey != "your_gemini_api_key_here"
	a.HuggingFace = cfg.HuggingFace.APIKey != ""
	a.Ark = cfg.Ark.APIKey != "" && cfg.Ark.ModelID != ""

	if cfg.Ollama.BaseURL != "" {
		client := resty.New().SetTimeout(2 * time.Second)
		resp, err := client.R().Get(strings.TrimRight(cfg.Ollama.BaseURL, "/") + "/api/tags")
		a.Ollama = err == nil && resp.StatusCode() == 200
	}
	return a
}
