package modes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"标准名", "web-ctf", "web-ctf"},
		{"下划线别名", "web_ctf", "web-ctf"},
		{"连写别名", "webctf", "web-ctf"},
		{"空格与大小写归一", "Web CTF", "web-ctf"},
		{"通用模式", "GENERAL", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Get(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Name)
		})
	}

	t.Run("未知模式", func(t *testing.T) {
		_, ok := Get("pwn")
		assert.False(t, ok)
	})
}

func TestModeTemplates(t *testing.T) {
	// 模板保留占位符，渲染留给调用方
	assert.Contains(t, WebCTF.SystemContext, "{tools_description}")
	assert.Contains(t, General.SystemContext, "{format_instructions}")
	assert.Contains(t, WebCTF.SystemContext, "CTF")
}

func TestList(t *testing.T) {
	assert.Equal(t, []string{"general", "web-ctf"}, List())
}

func TestExampleChallenges(t *testing.T) {
	require.NotEmpty(t, ExampleChallenges)
	keys := map[string]bool{}
	for _, c := range ExampleChallenges {
		assert.NotEmpty(t, c.Key)
		assert.NotEmpty(t, c.Challenge)
		assert.False(t, keys[c.Key], "duplicate key %s", c.Key)
		keys[c.Key] = true
		if strings.HasPrefix(c.Solution, "FLAG{") {
			assert.True(t, strings.HasSuffix(c.Solution, "}"))
		}
	}
	assert.True(t, keys["base64_flag"])
	assert.True(t, keys["web_challenge"])
}
