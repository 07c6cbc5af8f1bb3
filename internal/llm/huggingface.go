package llm

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/huggingface"

	"github.com/wwwzy/redagent/internal/config"
)

// HuggingFace Inference API 后端。
type HuggingFace struct {
	mu    sync.Mutex
	model string
	llm   *huggingface.LLM
}

func NewHuggingFace(cfg config.HuggingFaceConfig) (*HuggingFace, error) {
	model := cfg.Model
	if model == "" {
		model = "mistralai/Mistral-7B-Instruct-v0.2"
	}
	client, err := huggingface.New(
		huggingface.WithToken(cfg.APIKey),
		huggingface.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &HuggingFace{model: model, llm: client}, nil
}

func (h *HuggingFace) Name() string { return "huggingface" }

func (h *HuggingFace) Model() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model
}

func (h *HuggingFace) SetModel(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.model = name
	return nil
}

func (h *HuggingFace) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	resp, err := h.llm.GenerateContent(ctx, toMessageContents(history, prompt),
		llms.WithModel(h.Model()),
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}
