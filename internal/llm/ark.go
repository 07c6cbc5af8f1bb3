package llm

import (
	"context"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/redagent/internal/config"
)

// Ark 火山方舟后端。历史已经是 eino 消息，直接透传。
type Ark struct {
	mu  sync.Mutex
	cfg config.ArkConfig
	llm *ark.ChatModel
}

func NewArk(ctx context.Context, cfg config.ArkConfig) (*Ark, error) {
	model, err := newArkModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Ark{cfg: cfg, llm: model}, nil
}

func newArkModel(ctx context.Context, cfg config.ArkConfig) (*ark.ChatModel, error) {
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.ModelID,
		BaseURL: cfg.BaseURL,
	})
}

func (a *Ark) Name() string { return "ark" }

func (a *Ark) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.ModelID
}

// SetModel 重建 ChatModel，方舟客户端在构造时固化接入点。
func (a *Ark) SetModel(name string) error {
	cfg := a.cfg
	cfg.ModelID = name
	model, err := newArkModel(context.Background(), cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.llm = model
	return nil
}

func (a *Ark) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	a.mu.Lock()
	model := a.llm
	a.mu.Unlock()

	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, schema.UserMessage(prompt))

	out, err := model.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
