package agent

import "encoding/json"

// Step 表示 ReAct 循环中已完成的一轮。
//
// 一个 Step 只有两种合法形态：
//   - 工具步：Action/ActionInput/Observation 全部存在，IsFinal=false。
//   - 终止步：FinalAnswer 存在，IsFinal=true，工具相关字段为零值。
//
// Step 一经写入历史便不再修改；历史由 Runner 独占持有，按完成顺序追加。
type Step struct {
	Number      int
	Thought     string
	Action      string
	ActionInput map[string]any
	Observation string
	IsFinal     bool
	FinalAnswer string
}

// CanonicalInput 返回 ActionInput 的规范化 JSON 序列化结果。
// Go 的 json.Marshal 对 map 按 key 排序输出（包括嵌套 map），
// 因此 {"a":1,"b":2} 与 {"b":2,"a":1} 会得到相同的字符串，
// 可直接用于循环检测的相等比较。
func (s Step) CanonicalInput() string {
	if s.ActionInput == nil {
		return "{}"
	}
	data, err := json.Marshal(s.ActionInput)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Result 是一次目标执行的最终产出。调用方永远拿到 Result，而不是 panic 或裸错误。
type Result struct {
	// Success 表示是否以 Final Answer 正常结束。
	Success bool
	// Output 在成功时为最终答案文本。
	Output string
	// Err 在失败时为错误描述（卡死/超限/后端错误）。
	Err string
	// Steps 为完整的步骤历史（含终止步）。
	Steps []Step
}
