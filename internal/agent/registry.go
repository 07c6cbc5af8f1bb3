package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ToolFunc 是工具的底层实现。返回文本结果；失败时返回 error，
// 由 Executor 统一转换为观察文本，绝不向循环层抛出。
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ParamSpec 描述单个参数的约束。
// 类型枚举沿用 eino 的 schema.DataType（string/integer/boolean/object...）。
// Types 非空时表示联合类型（oneOf），值匹配其中任意一个即可；
// 此时 Type 字段被忽略。
type ParamSpec struct {
	Type     schema.DataType
	Types    []schema.DataType
	Desc     string
	Required bool
	// Enum 非空时限定合法取值（仅对字符串参数有意义）。
	Enum []string
}

// ToolDefinition 是一个可调用能力的静态元数据。注册后不可变。
type ToolDefinition struct {
	Name   string
	Desc   string
	Params map[string]*ParamSpec
	Fn     ToolFunc
}

// Registry 维护工具名到定义的映射。启动时填充一次，循环侧只读。
type Registry struct {
	tools map[string]*ToolDefinition
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*ToolDefinition)}
}

// Register 注册一个工具。名字重复或定义不完整时报错。
func (r *Registry) Register(def *ToolDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Fn == nil {
		return fmt.Errorf("tool %q has no callable", def.Name)
	}
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	if def.Params == nil {
		def.Params = map[string]*ParamSpec{}
	}
	r.tools[def.Name] = def
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Get(name string) (*ToolDefinition, bool) {
	def, ok := r.tools[name]
	return def, ok
}

// Names 返回所有工具名（字典序，保证输出稳定）。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe 渲染提示词里的工具清单块，逐行 "- name: description"。
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, name := range r.Names() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(r.tools[name].Desc)
	}
	return b.String()
}

// Suggest 为未注册的名字找出最相近的候选工具。
// 判定规则：双向子串包含，或去掉下划线后（不区分大小写）相等。
// 没有相近项时返回全部工具名，让模型至少看到可用选项。
func (r *Registry) Suggest(name string) []string {
	lower := strings.ToLower(name)
	flat := strings.ReplaceAll(lower, "_", "")

	var similar []string
	for _, candidate := range r.Names() {
		cl := strings.ToLower(candidate)
		cf := strings.ReplaceAll(cl, "_", "")
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) || cf == flat {
			similar = append(similar, candidate)
		}
	}
	if len(similar) == 0 {
		return r.Names()
	}
	return similar
}
