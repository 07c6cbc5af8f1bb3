package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/wwwzy/redagent/internal/agent"
)

// WebTools 把 HTTP 类工具与会话存储绑在一起。
type WebTools struct {
	store   *SessionStore
	timeout time.Duration
}

func NewWebTools(store *SessionStore, timeout time.Duration) *WebTools {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebTools{store: store, timeout: timeout}
}

// WebRequestDefinition web_request 工具：完整的 GET/POST 客户端，
// 支持自定义头、表单/JSON/原始体，以及按 session_id 复用 cookie。
func (w *WebTools) WebRequestDefinition() *agent.ToolDefinition {
	return &agent.ToolDefinition{
		Name: "web_request",
		Desc: "Fetch content from a URL using HTTP GET or POST. Returns the response text, headers, and status code. Useful for analyzing web applications in CTF challenges.",
		Params: map[string]*agent.ParamSpec{
			"url": {
				Type:     schema.String,
				Desc:     "The URL to fetch (must start with http:// or https://)",
				Required: true,
			},
			"method": {
				Type: schema.String,
				Desc: "HTTP method to use",
				Enum: []string{"GET", "POST"},
			},
			"headers": {
				Type: schema.Object,
				Desc: "Optional HTTP headers as key-value pairs",
			},
			"data": {
				Types: []schema.DataType{schema.String, schema.Object},
				Desc:  "Data to send in POST request. Can be a string (parsed based on content_type) or an object (sent as form data or JSON depending on content_type)",
			},
			"content_type": {
				Type: schema.String,
				Desc: "How to send the data: 'form' for form-encoded, 'json' for JSON, 'raw' for raw string",
				Enum: []string{"form", "json", "raw"},
			},
			"session_id": {
				Type: schema.String,
				Desc: "Optional session identifier. Requests sharing a session_id reuse cookies and stored CSRF tokens",
			},
		},
		Fn: w.webRequest,
	}
}

// FetchDefinition fetch_web_content 工具：web_request 的精简版，
// 无会话、无结构化体，保持给模型的示例签名简单。
func (w *WebTools) FetchDefinition() *agent.ToolDefinition {
	return &agent.ToolDefinition{
		Name: "fetch_web_content",
		Desc: "Fetch content from a URL using HTTP GET or POST. Returns the response text, headers, and status code. Useful for analyzing web applications in CTF challenges.",
		Params: map[string]*agent.ParamSpec{
			"url": {
				Type:     schema.String,
				Desc:     "The URL to fetch (must start with http:// or https://)",
				Required: true,
			},
			"method": {
				Type: schema.String,
				Desc: "HTTP method to use",
				Enum: []string{"GET", "POST"},
			},
			"headers": {
				Type: schema.Object,
				Desc: "Optional HTTP headers as key-value pairs",
			},
			"data": {
				Type: schema.String,
				Desc: "Optional data to send in POST request body",
			},
		},
		Fn: w.fetchWebContent,
	}
}

func (w *WebTools) webRequest(ctx context.Context, args map[string]any) (string, error) {
	target, _ := args["url"].(string)
	method := strings.ToUpper(stringArg(args, "method", "GET"))
	contentType := stringArg(args, "content_type", "form")
	headers := headerArg(args)
	sessionID := stringArg(args, "session_id", "")

	var session *Session
	client := newHTTPClient(w.timeout, false)
	if sessionID != "" {
		session = w.store.Get(sessionID)
		client = session.Client()
	}

	req := client.R().SetContext(ctx).SetHeaders(headers)

	if method == "POST" {
		if msg, ok := w.preparePostBody(req, args, contentType, session); !ok {
			return msg, nil
		}
	}

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(target)
	case "POST":
		resp, err = req.Post(target)
	default:
		return fmt.Sprintf("Error: Unsupported method %s", method), nil
	}
	if err != nil {
		if isTimeout(err) {
			return fmt.Sprintf("Error: Request to %s timed out", target), nil
		}
		return fmt.Sprintf("Error fetching %s: %s", target, err), nil
	}

	body := resp.String()
	if session != nil {
		harvestTokens(session, body)
	}
	return formatResponse(resp, body, session), nil
}

func (w *WebTools) fetchWebContent(ctx context.Context, args map[string]any) (string, error) {
	target, _ := args["url"].(string)
	method := strings.ToUpper(stringArg(args, "method", "GET"))
	headers := headerArg(args)
	data := stringArg(args, "data", "")

	req := newHTTPClient(w.timeout, false).R().SetContext(ctx).SetHeaders(headers)

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(target)
	case "POST":
		resp, err = req.SetBody(data).Post(target)
	default:
		return fmt.Sprintf("Error: Unsupported method %s", method), nil
	}
	if err != nil {
		if isTimeout(err) {
			return fmt.Sprintf("Error: Request to %s timed out", target), nil
		}
		return fmt.Sprintf("Error fetching %s: %s", target, err), nil
	}
	return formatResponse(resp, resp.String(), nil), nil
}

// preparePostBody 按 content_type 组装 POST 体。返回 false 时第一个
// 返回值是给模型看的错误观察。
func (w *WebTools) preparePostBody(req *resty.Request, args map[string]any, contentType string, session *Session) (string, bool) {
	raw, present := args["data"]
	if !present {
		return "", true
	}

	switch data := raw.(type) {
	case map[string]any:
		switch contentType {
		case "json":
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(data)
		case "raw":
			req.SetHeader("Content-Type", "text/plain")
			req.SetBody(fmt.Sprint(data))
		default: // form
			form := make(map[string]string, len(data))
			for k, v := range data {
				form[k] = fmt.Sprint(v)
			}
			injectTokens(form, session)
			req.SetFormData(form)
		}
	case string:
		if data == "" {
			return "", true
		}
		// content_type 为 form 但内容像 JSON 对象时自动切换
		trimmed := strings.TrimSpace(data)
		if contentType == "form" && strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			var obj map[string]any
			if json.Unmarshal([]byte(trimmed), &obj) == nil {
				contentType = "json"
			}
		}
		switch contentType {
		case "json":
			var obj map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &obj); err != nil {
				return fmt.Sprintf("Error: Invalid JSON data for content_type='json': %s", data), false
			}
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(obj)
		case "raw":
			req.SetHeader("Content-Type", "text/plain")
			req.SetBody(data)
		default: // form，按查询串格式解析
			values, err := url.ParseQuery(data)
			if err != nil {
				return fmt.Sprintf("Error: Invalid form data format: %s. Use key=value&key2=value2 format.", data), false
			}
			form := make(map[string]string, len(values))
			for k, vs := range values {
				if len(vs) > 0 {
					form[k] = vs[0]
				} else {
					form[k] = ""
				}
			}
			injectTokens(form, session)
			req.SetFormData(form)
		}
	}
	return "", true
}

// injectTokens 把会话里存的令牌补进表单（已有同名字段时不覆盖）。
func injectTokens(form map[string]string, session *Session) {
	if session == nil {
		return
	}
	for name, value := range session.Tokens() {
		if _, exists := form[name]; !exists {
			form[name] = value
		}
	}
}

// harvestTokens 从响应 HTML 的隐藏输入框里提取疑似 CSRF 令牌。
func harvestTokens(session *Session, body string) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var typ, name, value string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "type":
					typ = strings.ToLower(a.Val)
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				}
			}
			if typ == "hidden" && name != "" && value != "" && looksLikeToken(name) {
				session.SetToken(name, value)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func looksLikeToken(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "csrf") || strings.Contains(lower, "token")
}

// formatResponse 按固定版式拼响应观察：状态码、响应头、
// 内容长度、正文；会话请求再附上已存令牌字段名。
func formatResponse(resp *resty.Response, body string, session *Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status Code: %d\n\n", resp.StatusCode())
	b.WriteString("Headers:\n")

	keys := make([]string, 0, len(resp.Header()))
	for k := range resp.Header() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header()[k] {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}

	fmt.Fprintf(&b, "\nContent Length: %d bytes\n\n", len(body))
	fmt.Fprintf(&b, "Content:\n%s", body)

	if session != nil {
		if names := session.TokenNames(); len(names) > 0 {
			fmt.Fprintf(&b, "\n\nStored CSRF Tokens: %s", strings.Join(names, ", "))
		}
	}
	return b.String()
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "Client.Timeout")
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func headerArg(args map[string]any) map[string]string {
	out := map[string]string{}
	if m, ok := args["headers"].(map[string]any); ok {
		for k, v := range m {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
