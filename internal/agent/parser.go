package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Decision 是对一条模型输出的唯一解析结论。
// 三种情况恰好居其一：工具调用（Action 非空且 Err 为空）、
// 终止（IsFinal=true）、解析错误（Err 非空）。
// 解析错误时 Thought/Action 可能携带已提取到的部分内容，
// 供 Runner 决定如何纠偏重试。
type Decision struct {
	Thought     string
	Action      string
	ActionInput map[string]any
	IsFinal     bool
	FinalAnswer string
	// Err 为空表示解析成功；非空时是给模型看的纠偏说明。
	Err string
}

// 缺省推理文本，与提取不到 Thought 时的兜底行为配套。
const (
	fallbackFinalThought  = "I have determined the answer."
	fallbackActionThought = "I need to analyze this step by step."
)

// 提取规则的优先级是行为契约的一部分，顺序不可调换：
//  1. 多轮截断：第二个 Thought: 或第一个 Observation: 之后的内容丢弃。
//  2. Final Answer 检查先于 Action 检查。
//  3. Action Input 的 JSON 提取：直接对象 -> 代码块包裹 -> 平衡括号兜底。
var (
	thoughtMarkerRe = regexp.MustCompile(`(?i)(?:^|\n)\s*Thought:`)
	observationRe   = regexp.MustCompile(`(?i)\n\s*Observation:`)

	finalAnswerRe  = regexp.MustCompile(`(?is)Final Answer:\s*(.+?)(?:\n(?:Thought:|Action:)|$)`)
	finalThoughtRe = regexp.MustCompile(`(?is)Thought:\s*(.+?)\s*Final Answer:`)

	firstThoughtRe = regexp.MustCompile(`(?is)Thought:\s*(.+?)(?:\n\s*(?:Action:|Thought:)|$)`)
	actionRe       = regexp.MustCompile("(?i)Action:\\s*[*_`]*(\\w+)")
	actionInputRe  = regexp.MustCompile(`(?i)Action Input:\s*`)

	fenceOpenRe = regexp.MustCompile("^```[a-zA-Z]*\\s*")
)

// Parser 把一条原始补全转成一个 Decision。上游文本不可信，
// 任何畸形输入都落到带解释文本的解析错误，本身从不报错。
type Parser struct {
	reg *Registry
}

func NewParser(reg *Registry) *Parser {
	return &Parser{reg: reg}
}

// TruncateMultiStep 在出现第二个 Thought: 或第一个 Observation: 处截断，
// 防止模型在一条补全里幻想出多轮对话。两者都出现时取更早的位置。
func (p *Parser) TruncateMultiStep(response string) string {
	cut := -1

	if locs := thoughtMarkerRe.FindAllStringIndex(response, 3); len(locs) > 1 {
		cut = locs[1][0]
	}
	if loc := observationRe.FindStringIndex(response); loc != nil {
		if cut < 0 || loc[0] < cut {
			cut = loc[0]
		}
	}

	if cut >= 0 {
		return strings.TrimSpace(response[:cut])
	}
	return response
}

// Parse 解析一条（已截断的）补全。
func (p *Parser) Parse(response string) Decision {
	// Final Answer 优先于 Action：即便后文还跟着 Action，也按终止处理。
	if m := finalAnswerRe.FindStringSubmatch(response); m != nil {
		thought := fallbackFinalThought
		if tm := finalThoughtRe.FindStringSubmatch(response); tm != nil {
			thought = strings.TrimSpace(tm[1])
		}
		return Decision{
			IsFinal:     true,
			Thought:     thought,
			FinalAnswer: strings.TrimSpace(m[1]),
		}
	}

	// 第一段 Thought；多行时只保留第一行，避免模型把计划全塞进来。
	thought := fallbackActionThought
	if tm := firstThoughtRe.FindStringSubmatch(response); tm != nil {
		thought = strings.TrimSpace(tm[1])
		if idx := strings.IndexByte(thought, '\n'); idx >= 0 {
			thought = strings.TrimSpace(thought[:idx])
		}
	}

	am := actionRe.FindStringSubmatch(response)
	if am == nil {
		return Decision{
			Thought: thought,
			Err:     "No action specified. Please specify which tool to use.",
		}
	}
	action := am[1]

	if !p.reg.Has(action) {
		suggestions := p.reg.Suggest(action)
		var msg string
		if len(suggestions) < len(p.reg.Names()) {
			msg = "Unknown tool '" + action + "'. Did you mean: " + strings.Join(suggestions, ", ") + "?"
		} else {
			msg = "Unknown tool '" + action + "'. Available tools: " + strings.Join(suggestions, ", ")
		}
		return Decision{Thought: thought, Err: msg}
	}

	// Action Input 标记缺失时按空参数处理（部分工具本就无参数）。
	loc := actionInputRe.FindStringIndex(response)
	if loc == nil {
		return Decision{Thought: thought, Action: action, ActionInput: map[string]any{}}
	}

	input, ok := extractJSONObject(response[loc[1]:])
	if !ok {
		return Decision{
			Thought:     thought,
			Action:      action,
			ActionInput: map[string]any{},
			Err:         "Could not parse Action Input as valid JSON",
		}
	}
	return Decision{Thought: thought, Action: action, ActionInput: input}
}

// extractJSONObject 按固定优先级从文本里取出第一个完整的 JSON 对象：
// 直接以 { 开头的对象、```json 代码块包裹的对象、
// 以及从任意位置第一个 { 开始的平衡括号扫描兜底。
// 平衡扫描会跳过字符串字面量内部的大括号，容忍嵌套对象和换行。
func extractJSONObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	// 代码块包裹：剥掉围栏后继续按普通文本处理。
	if strings.HasPrefix(text, "```") {
		text = fenceOpenRe.ReplaceAllString(text, "")
		if idx := strings.Index(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	raw, ok := scanBalanced(text[start:])
	if !ok {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}

// scanBalanced 从首个 { 起找到与之配对的 }，返回完整片段并忽略其后的杂质。
func scanBalanced(text string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1], true
			}
		}
	}
	return "", false
}
