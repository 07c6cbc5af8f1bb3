package llm

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/wwwzy/redagent/internal/config"
)

// Ollama 本地 Ollama 后端。本地模型对截停序列支持不稳，
// 这里不设 stop words，多步输出交给解析侧截断兜底。
type Ollama struct {
	mu      sync.Mutex
	baseURL string
	model   string
	llm     *ollama.LLM
}

func NewOllama(cfg config.OllamaConfig) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	client, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Ollama{baseURL: cfg.BaseURL, model: model, llm: client}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SetModel 切换模型需要重建客户端，langchaingo 的 ollama
// 客户端在构造时固化模型名。
func (o *Ollama) SetModel(name string) error {
	client, err := ollama.New(
		ollama.WithServerURL(o.baseURL),
		ollama.WithModel(name),
	)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = name
	o.llm = client
	return nil
}

func (o *Ollama) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	o.mu.Lock()
	client := o.llm
	o.mu.Unlock()

	resp, err := client.GenerateContent(ctx, toMessageContents(history, prompt),
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(512),
		llms.WithTopP(0.9),
		llms.WithTopK(40),
		llms.WithRepetitionPenalty(1.1),
	)
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}
