package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wwwzy/redagent/internal/storage"
)

// GeminiConfig Google Gemini 后端配置。
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OllamaConfig 本地 Ollama 后端配置。
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// HuggingFaceConfig Hugging Face Inference API 后端配置。
type HuggingFaceConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ArkConfig 火山方舟后端配置。
type ArkConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

// AgentConfig 控制循环的运行参数。
type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	LoopDetection bool          `mapstructure:"loop_detection"`
	Truncation    bool          `mapstructure:"truncation"`
}

type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	SessionLog  string            `mapstructure:"session_log"`
	Storage     storage.Config    `mapstructure:"storage"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Ark         ArkConfig         `mapstructure:"ark"`
}

func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.redagent")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REDAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 提供商的密钥沿用业内惯用的环境变量名，不带前缀
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
	v.BindEnv("ollama.model", "OLLAMA_MODEL")
	v.BindEnv("huggingface.api_key", "HUGGINGFACE_API_KEY")
	v.BindEnv("ark.api_key", "ARK_API_KEY")
	v.BindEnv("ark.model_id", "ARK_MODEL_ID")
	v.BindEnv("ark.base_url", "ARK_BASE_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	if c.Agent.ToolTimeout <= 0 {
		return fmt.Errorf("agent.tool_timeout must be positive")
	}
	if c.Agent.HTTPTimeout <= 0 {
		return fmt.Errorf("agent.http_timeout must be positive")
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required (or set OLLAMA_BASE_URL env var)")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("session_log", "")

	v.SetDefault("storage.path", "redagent.db")
	v.SetDefault("storage.busy_timeout", 5*time.Second)

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.tool_timeout", 5*time.Second)
	v.SetDefault("agent.http_timeout", 10*time.Second)
	v.SetDefault("agent.loop_detection", true)
	v.SetDefault("agent.truncation", true)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")

	v.SetDefault("huggingface.api_key", "")
	v.SetDefault("huggingface.model", "mistralai/Mistral-7B-Instruct-v0.2")

	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.model_id", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
}
