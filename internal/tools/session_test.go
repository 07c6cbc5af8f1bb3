package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(3 * time.Second)

	t.Run("Get 不存在时创建", func(t *testing.T) {
		assert.False(t, store.Has("s1"))
		s := store.Get("s1")
		require.NotNil(t, s)
		require.NotNil(t, s.Client())
		assert.True(t, store.Has("s1"))
	})

	t.Run("同一 id 复用同一会话", func(t *testing.T) {
		assert.Same(t, store.Get("s1"), store.Get("s1"))
		assert.NotSame(t, store.Get("s1"), store.Get("s2"))
	})

	t.Run("Clear 只丢弃指定会话", func(t *testing.T) {
		store.Get("s1")
		store.Get("s2")
		store.Clear("s1")
		assert.False(t, store.Has("s1"))
		assert.True(t, store.Has("s2"))
	})

	t.Run("Reset 丢弃全部", func(t *testing.T) {
		store.Get("a")
		store.Get("b")
		store.Reset()
		assert.False(t, store.Has("a"))
		assert.False(t, store.Has("b"))
	})
}

func TestSessionTokens(t *testing.T) {
	store := NewSessionStore(3 * time.Second)
	s := store.Get("tok")

	assert.Empty(t, s.TokenNames())

	s.SetToken("csrf_token", "v1")
	s.SetToken("auth_token", "v2")
	s.SetToken("csrf_token", "v3") // 同名覆盖

	assert.Equal(t, []string{"auth_token", "csrf_token"}, s.TokenNames())
	assert.Equal(t, map[string]string{"auth_token": "v2", "csrf_token": "v3"}, s.Tokens())

	// 快照与内部状态解耦
	snap := s.Tokens()
	snap["csrf_token"] = "mutated"
	assert.Equal(t, "v3", s.Tokens()["csrf_token"])
}
