package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Command
	}{
		{"切换后端", "/agent ollama", &Command{Type: "agent", Value: "ollama"}},
		{"切换模型", "/model llama3.1", &Command{Type: "model", Value: "llama3.1"}},
		{"切换模式", "/mode web-ctf", &Command{Type: "mode", Value: "web-ctf"}},
		{"两段式设置", "/setting max-iterations 15", &Command{Type: "setting", Value: "max-iterations", Arg: "15"}},
		{"单段式设置", "/setting truncate", &Command{Type: "setting", Value: "truncate"}},
		{"示例", "/examples", &Command{Type: "examples"}},
		{"帮助", "/help", &Command{Type: "help"}},
		{"清屏", "/clear", &Command{Type: "clear"}},
		{"退出 exit", "/exit", &Command{Type: "exit"}},
		{"退出 quit", "/quit", &Command{Type: "quit"}},
		{"大小写不敏感", "/AGENT Gemini", &Command{Type: "agent", Value: "Gemini"}},
		{"首尾空白容忍", "  /help  ", &Command{Type: "help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("非命令输入返回 nil", func(t *testing.T) {
		assert.Nil(t, ParseCommand("Solve http://ctf.local/web1"))
		assert.Nil(t, ParseCommand("/agent"))    // 缺参数
		assert.Nil(t, ParseCommand("/unknown x")) // 未注册命令
		assert.Nil(t, ParseCommand(""))
	})
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("/help"))
	assert.True(t, IsCommand("  /agent ollama"))
	assert.False(t, IsCommand("find the flag"))
	assert.False(t, IsCommand(""))
}
