package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebTools(t *testing.T) (*WebTools, *SessionStore) {
	t.Helper()
	store := NewSessionStore(5 * time.Second)
	return NewWebTools(store, 5*time.Second), store
}

func TestWebRequest_GetFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Flag-Hint", "check-headers")
		fmt.Fprint(w, "hello ctf")
	}))
	defer srv.Close()

	wt, _ := newTestWebTools(t)
	fn := wt.WebRequestDefinition().Fn

	got, err := fn(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Status Code: 200\n\nHeaders:\n"))
	assert.Contains(t, got, "  X-Flag-Hint: check-headers\n")
	assert.Contains(t, got, "\nContent Length: 9 bytes\n\nContent:\nhello ctf")
	assert.NotContains(t, got, "Stored CSRF Tokens")
}

func TestWebRequest_CustomHeaders(t *testing.T) {
	var gotUA, gotProbe string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotProbe = r.Header.Get("X-Probe")
	}))
	defer srv.Close()

	wt, _ := newTestWebTools(t)
	_, err := wt.WebRequestDefinition().Fn(context.Background(), map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Probe": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "RedTeamAgent/1.0", gotUA)
	assert.Equal(t, "1", gotProbe)
}

func TestWebRequest_PostBodies(t *testing.T) {
	type seen struct {
		contentType string
		form        map[string]string
		body        string
	}
	var last seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		last = seen{contentType: r.Header.Get("Content-Type"), body: string(body)}
		if strings.HasPrefix(last.contentType, "application/x-www-form-urlencoded") {
			r.Body = io.NopCloser(strings.NewReader(last.body))
			_ = r.ParseForm()
			last.form = map[string]string{}
			for k := range r.PostForm {
				last.form[k] = r.PostForm.Get(k)
			}
		}
	}))
	defer srv.Close()

	wt, _ := newTestWebTools(t)
	fn := wt.WebRequestDefinition().Fn
	ctx := context.Background()

	t.Run("对象数据默认按表单发送", func(t *testing.T) {
		_, err := fn(ctx, map[string]any{
			"url":    srv.URL,
			"method": "POST",
			"data":   map[string]any{"user": "admin", "attempt": 2},
		})
		require.NoError(t, err)
		assert.Equal(t, "admin", last.form["user"])
		assert.Equal(t, "2", last.form["attempt"])
	})

	t.Run("字符串数据按查询串解析为表单", func(t *testing.T) {
		_, err := fn(ctx, map[string]any{
			"url":    srv.URL,
			"method": "POST",
			"data":   "user=guest&pass=secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "guest", last.form["user"])
		assert.Equal(t, "secret", last.form["pass"])
	})

	t.Run("JSON 形状的字符串自动切换为 JSON 体", func(t *testing.T) {
		_, err := fn(ctx, map[string]any{
			"url":    srv.URL,
			"method": "POST",
			"data":   `{"user": "admin"}`,
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(last.contentType, "application/json"))
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(last.body), &obj))
		assert.Equal(t, "admin", obj["user"])
	})

	t.Run("raw 原样发送", func(t *testing.T) {
		_, err := fn(ctx, map[string]any{
			"url":          srv.URL,
			"method":       "POST",
			"data":         "PAYLOAD' OR 1=1--",
			"content_type": "raw",
		})
		require.NoError(t, err)
		assert.Equal(t, "PAYLOAD' OR 1=1--", last.body)
	})

	t.Run("非法表单数据返回格式提示", func(t *testing.T) {
		got, err := fn(ctx, map[string]any{
			"url":    srv.URL,
			"method": "POST",
			"data":   "a=%zz",
		})
		require.NoError(t, err)
		assert.Equal(t, "Error: Invalid form data format: a=%zz. Use key=value&key2=value2 format.", got)
	})

	t.Run("非法 JSON 数据返回错误观察", func(t *testing.T) {
		got, err := fn(ctx, map[string]any{
			"url":          srv.URL,
			"method":       "POST",
			"data":         "not json at all",
			"content_type": "json",
		})
		require.NoError(t, err)
		assert.Equal(t, "Error: Invalid JSON data for content_type='json': not json at all", got)
	})
}

func TestWebRequest_UnsupportedMethod(t *testing.T) {
	wt, _ := newTestWebTools(t)
	got, err := wt.WebRequestDefinition().Fn(context.Background(), map[string]any{
		"url":    "http://example.com",
		"method": "DELETE",
	})
	require.NoError(t, err)
	assert.Equal(t, "Error: Unsupported method DELETE", got)
}

func TestWebRequest_SessionCookies(t *testing.T) {
	var secondCookie string
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
			return
		}
		if c, err := r.Cookie("session"); err == nil {
			secondCookie = c.Value
		}
	}))
	defer srv.Close()

	wt, store := newTestWebTools(t)
	fn := wt.WebRequestDefinition().Fn
	ctx := context.Background()

	_, err := fn(ctx, map[string]any{"url": srv.URL, "session_id": "s1"})
	require.NoError(t, err)
	_, err = fn(ctx, map[string]any{"url": srv.URL, "session_id": "s1"})
	require.NoError(t, err)

	assert.Equal(t, "abc123", secondCookie)
	assert.True(t, store.Has("s1"))
}

func TestWebRequest_CSRFHarvestAndInject(t *testing.T) {
	const page = `<html><body><form>
		<input type="hidden" name="csrf_token" value="tok-42">
		<input type="hidden" name="trap" value="ignored">
		<input type="text" name="user">
	</form></body></html>`

	var postedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			postedToken = r.PostForm.Get("csrf_token")
			fmt.Fprint(w, "FLAG{csrf_ok}")
			return
		}
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	wt, store := newTestWebTools(t)
	fn := wt.WebRequestDefinition().Fn
	ctx := context.Background()

	got, err := fn(ctx, map[string]any{"url": srv.URL, "session_id": "csrf"})
	require.NoError(t, err)
	// 只收名字像令牌的隐藏字段
	assert.True(t, strings.HasSuffix(got, "\n\nStored CSRF Tokens: csrf_token"), got)
	assert.Equal(t, map[string]string{"csrf_token": "tok-42"}, store.Get("csrf").Tokens())

	got, err = fn(ctx, map[string]any{
		"url":        srv.URL,
		"method":     "POST",
		"data":       map[string]any{"user": "admin"},
		"session_id": "csrf",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-42", postedToken)
	assert.Contains(t, got, "Content:\nFLAG{csrf_ok}")
}

func TestWebRequest_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	wt := NewWebTools(NewSessionStore(time.Second), 50*time.Millisecond)
	got, err := wt.WebRequestDefinition().Fn(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Error: Request to %s timed out", srv.URL), got)
}

func TestFetchWebContent(t *testing.T) {
	var lastBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			b, _ := io.ReadAll(r.Body)
			lastBody = string(b)
		}
		fmt.Fprint(w, "<h1>Welcome</h1>")
	}))
	defer srv.Close()

	wt, _ := newTestWebTools(t)
	fn := wt.FetchDefinition().Fn
	ctx := context.Background()

	t.Run("GET 返回固定版式", func(t *testing.T) {
		got, err := fn(ctx, map[string]any{"url": srv.URL})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "Status Code: 200\n\nHeaders:\n"))
		assert.Contains(t, got, "Content:\n<h1>Welcome</h1>")
	})

	t.Run("POST 原样带体", func(t *testing.T) {
		_, err := fn(ctx, map[string]any{"url": srv.URL, "method": "POST", "data": "probe=1"})
		require.NoError(t, err)
		assert.Equal(t, "probe=1", lastBody)
	})

	t.Run("连接失败返回错误观察", func(t *testing.T) {
		got, err := fn(ctx, map[string]any{"url": "http://127.0.0.1:1/nothing"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "Error fetching http://127.0.0.1:1/nothing: "), got)
	})
}
