package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// DefaultToolTimeout 是单次工具执行的墙钟时间上限。
const DefaultToolTimeout = 5 * time.Second

// Executor 负责安全地运行一个具名工具：先做参数校验，再在独立
// goroutine 中执行并限时等待。所有失败路径（未知工具、参数非法、
// panic、超时）都归一化为观察文本，永不向调用方抛错。
type Executor struct {
	reg     *Registry
	timeout time.Duration
}

func NewExecutor(reg *Registry, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Executor{reg: reg, timeout: timeout}
}

// Execute 执行一次工具调用，返回喂给模型的观察文本。
//
// 超时语义：只放弃等待，不保证取消底层工作（工具自身应尊重 ctx）。
// ctx 取消（外部中断）时立即返回，让 Runner 在迭代边界处理暂停。
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) string {
	def, ok := e.reg.Get(name)
	if !ok {
		return fmt.Sprintf("Error: Unknown tool '%s'. Available tools: %s",
			name, strings.Join(e.reg.Names(), ", "))
	}

	if msg := validateArgs(def, args); msg != "" {
		return msg
	}

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := def.Fn(ctx, args)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return fmt.Sprintf("Error executing %s: %s", name, out.err.Error())
		}
		if strings.TrimSpace(out.result) == "" {
			return fmt.Sprintf("Tool '%s' completed but returned no result", name)
		}
		return out.result
	case <-timer.C:
		return fmt.Sprintf("Error: tool '%s' timed out after %s", name, e.timeout)
	case <-ctx.Done():
		return fmt.Sprintf("Error: tool '%s' execution interrupted", name)
	}
}

// validateArgs 根据注册的参数规格做前置校验，返回空串表示通过。
// 消息内容会原样作为观察文本反馈给模型，让它有机会自我纠正。
func validateArgs(def *ToolDefinition, args map[string]any) string {
	for pname, spec := range def.Params {
		if !spec.Required {
			continue
		}
		if _, ok := args[pname]; !ok {
			return fmt.Sprintf("Error: missing required parameter '%s' for tool '%s'", pname, def.Name)
		}
	}

	for pname, value := range args {
		spec, ok := def.Params[pname]
		if !ok {
			return fmt.Sprintf("Error: unknown parameter '%s' for tool '%s'", pname, def.Name)
		}

		allowed := spec.Types
		if len(allowed) == 0 {
			allowed = []schema.DataType{spec.Type}
		}
		matched := false
		for _, t := range allowed {
			if matchesType(value, t) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("Error: parameter '%s' expects %s, got %s",
				pname, typeList(allowed), jsonTypeName(value))
		}

		if len(spec.Enum) > 0 {
			sv, _ := value.(string)
			found := false
			for _, e := range spec.Enum {
				if sv == e {
					found = true
					break
				}
			}
			if !found {
				return fmt.Sprintf("Error: parameter '%s' must be one of [%s], got '%s'",
					pname, strings.Join(spec.Enum, ", "), sv)
			}
		}

		// 名为 url 的字符串参数额外要求 http(s) 前缀。
		if pname == "url" {
			if sv, ok := value.(string); ok {
				if !strings.HasPrefix(sv, "http://") && !strings.HasPrefix(sv, "https://") {
					return "Error: URL must start with http:// or https://"
				}
			}
		}
	}
	return ""
}

// matchesType 按 JSON 反序列化后的实际 Go 类型判断是否满足声明类型。
func matchesType(v any, t schema.DataType) bool {
	switch t {
	case schema.String:
		_, ok := v.(string)
		return ok
	case schema.Integer:
		f, ok := v.(float64)
		return ok && f == math.Trunc(f)
	case schema.Number:
		_, ok := v.(float64)
		return ok
	case schema.Boolean:
		_, ok := v.(bool)
		return ok
	case schema.Object:
		_, ok := v.(map[string]any)
		return ok
	case schema.Array:
		_, ok := v.([]any)
		return ok
	case schema.Null:
		return v == nil
	default:
		return false
	}
}

func jsonTypeName(v any) string {
	switch x := v.(type) {
	case string:
		return "string"
	case float64:
		if x == math.Trunc(x) {
			return "integer"
		}
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func typeList(types []schema.DataType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}
