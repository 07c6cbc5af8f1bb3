package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	// 测试加载默认值（不提供配置文件）
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "redagent.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)

	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 5*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(t, 10*time.Second, cfg.Agent.HTTPTimeout)
	assert.True(t, cfg.Agent.LoopDetection)
	assert.True(t, cfg.Agent.Truncation)

	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "llama3.1", cfg.Ollama.Model)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.2", cfg.HuggingFace.Model)
	assert.Equal(t, "https://ark.cn-beijing.volces.com/api/v3", cfg.Ark.BaseURL)
}

func TestLoad_ConfigFile(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
log_level: "debug"
gemini:
  api_key: "file-key"
  model: "gemini-1.5-pro"
agent:
  max_iterations: 15
  tool_timeout: "30s"
  loop_detection: false
storage:
  path: "test.db"
  busy_timeout: "10s"
`)
	err := os.WriteFile(configFile, content, 0644)
	assert.NoError(t, err)

	// 从文件加载
	cfg, err := Load(configFile)
	assert.NoError(t, err)

	// 验证覆盖值
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 15, cfg.Agent.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Agent.ToolTimeout)
	assert.False(t, cfg.Agent.LoopDetection)
	assert.Equal(t, "test.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Storage.BusyTimeout)

	// 验证未覆盖的字段保持默认值
	assert.Equal(t, "llama3.1", cfg.Ollama.Model)
	assert.Equal(t, 10*time.Second, cfg.Agent.HTTPTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REDAGENT_LOG_LEVEL", "warn")
	t.Setenv("REDAGENT_AGENT_MAX_ITERATIONS", "20")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("OLLAMA_MODEL", "qwen2.5")

	cfg, err := Load("")
	assert.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, "qwen2.5", cfg.Ollama.Model)
}

func TestLoad_InvalidValues(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"迭代数必须为正",
			"agent:\n  max_iterations: 0\n",
			"agent.max_iterations must be positive",
		},
		{
			"工具超时必须为正",
			"agent:\n  tool_timeout: \"-1s\"\n",
			"agent.tool_timeout must be positive",
		},
		{
			"ollama 地址必填",
			"ollama:\n  base_url: \"\"\n",
			"ollama.base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(tmpDir, "config.yaml")
			err := os.WriteFile(configFile, []byte(tt.content), 0644)
			assert.NoError(t, err)

			_, err = Load(configFile)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
