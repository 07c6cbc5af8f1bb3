package tools

import (
	"time"

	"github.com/wwwzy/redagent/internal/agent"
)

// NewDefaultRegistry 注册全部内置工具并返回注册表。
// httpTimeout 控制网络类工具的单次请求超时。
func NewDefaultRegistry(store *SessionStore, httpTimeout time.Duration) (*agent.Registry, error) {
	reg := agent.NewRegistry()
	web := NewWebTools(store, httpTimeout)

	defs := []*agent.ToolDefinition{
		web.WebRequestDefinition(),
		web.FetchDefinition(),
		Base64DecodeDefinition(),
		Base64EncodeDefinition(),
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
