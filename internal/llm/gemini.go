package llm

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/wwwzy/redagent/internal/config"
)

// Gemini Google Gemini 后端。低温度、短输出并在下一个
// "Thought:"/"Observation:" 处截停，抑制模型一次规划多步。
type Gemini struct {
	mu    sync.Mutex
	model string
	llm   *googleai.GoogleAI
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Gemini{model: model, llm: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Model() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.model
}

func (g *Gemini) SetModel(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.model = name
	return nil
}

func (g *Gemini) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	resp, err := g.llm.GenerateContent(ctx, toMessageContents(history, prompt),
		llms.WithModel(g.Model()),
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(512),
		llms.WithTopP(0.9),
		llms.WithTopK(40),
		llms.WithStopWords([]string{"\nThought:", "\n\nThought:", "Observation:"}),
	)
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}
