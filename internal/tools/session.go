// Package tools 提供内置工具：HTTP 请求、网页抓取、base64 编解码，
// 以及跨调用共享的会话存储。
package tools

import (
	"net/http/cookiejar"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "RedTeamAgent/1.0"

// Session 保存同一逻辑会话跨请求复用的状态：带 cookie jar 的
// HTTP 客户端，以及从响应页面里提取到的 CSRF 令牌。
type Session struct {
	client *resty.Client

	mu     sync.Mutex
	tokens map[string]string
}

// Client 返回会话绑定的 HTTP 客户端。
func (s *Session) Client() *resty.Client {
	return s.client
}

// SetToken 记录一个从页面隐藏字段提取到的令牌，按字段名覆盖。
func (s *Session) SetToken(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[name] = value
}

// Tokens 返回令牌快照，键为表单字段名。
func (s *Session) Tokens() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out
}

// TokenNames 返回已记录的令牌字段名，排序后用于展示。
func (s *Session) TokenNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tokens))
	for k := range s.tokens {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SessionStore 按调用方提供的 session_id 管理 Session。
// 显式对象而非包级全局变量，便于清理与并行测试。
type SessionStore struct {
	mu       sync.Mutex
	timeout  time.Duration
	sessions map[string]*Session
}

func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SessionStore{
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

// Get 取出指定会话，不存在时创建。
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := &Session{
		client: newHTTPClient(st.timeout, true),
		tokens: make(map[string]string),
	}
	st.sessions[id] = s
	return s
}

// Has 报告会话是否已存在（不创建）。
func (st *SessionStore) Has(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	return ok
}

// Clear 丢弃单个会话及其 cookie 与令牌。
func (st *SessionStore) Clear(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Reset 丢弃全部会话。
func (st *SessionStore) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
}

// newHTTPClient 构造一次性或会话级客户端。会话级带 cookie jar。
func newHTTPClient(timeout time.Duration, withJar bool) *resty.Client {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if withJar {
		// cookiejar.New 的 PublicSuffixList 为 nil 时不会报错
		jar, _ := cookiejar.New(nil)
		c.SetCookieJar(jar)
	}
	return c
}
