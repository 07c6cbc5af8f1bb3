package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Backend 是注入的 LLM 提供方适配器。控制器只依赖这一个操作，
// 消息组装、采样参数、停止序列等提供方细节全部封装在实现内部。
type Backend interface {
	// Name 返回提供方标识（gemini/ollama/huggingface/ark），用于日志与展示。
	Name() string
	// Call 给定本轮提示词与累计的对话历史，返回模型的原始补全文本。
	Call(ctx context.Context, prompt string, history []*schema.Message) (string, error)
}

// Display 是展示事件的接收端。所有方法都无返回值；
// 暂停期间控制器会抑制对它的调用，但步骤记录照常进行。
type Display interface {
	PrintThinking(thought string, step int)
	PrintToolCall(name string, input map[string]any, step int)
	PrintToolResponse(name string, result string, step int)
	PrintFinalAnswer(answer string)
	PrintError(errMsg string, suggestion string)
}

// SessionLog 记录循环内部事件（提示词、补全、工具执行、结局）。
// 由 internal/logging 提供 zap 实现；传 nil 表示不记录。
type SessionLog interface {
	LLMPrompt(step int, model string, prompt string)
	LLMResponse(step int, response string)
	ToolExecuted(tool string, duration time.Duration, success bool)
	RunFinished(success bool, detail string, steps int)
}

// State 是一次目标执行的控制状态。
type State int

const (
	StateFresh State = iota
	StateRunning
	StatePaused
	StateSucceeded
	StateFailed
	StateStuck
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateStuck:
		return "stuck"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

const defaultMaxIterations = 10

// 给模型的格式纠偏文本，解析失败时注入为 user 消息。
const formatCorrection = "You MUST respond with:\nThought: [your reasoning]\nAction: [tool_name]\nAction Input: {\"param\": \"value\"}"

const formatHint = "Please use the correct format:\nThought: ...\nAction: tool_name\nAction Input: {\"param\": \"value\"}"

// RunnerConfig 汇总控制器的可调参数。零值字段取默认。
type RunnerConfig struct {
	MaxIterations int
	// LoopDetection 关闭后不再做重复动作检测。
	LoopDetection bool
	ToolTimeout   time.Duration
	Display       Display
	Log           SessionLog
	// OnPause 在进入 PAUSED 状态时回调一次（异步），供 UI 提示用户。
	OnPause func()
}

// Runner 驱动单个目标的完整生命周期：组装提示词、调用模型、
// 解析决策、执行工具、维护历史，并在固定检查点响应暂停/恢复。
//
// 状态机：FRESH -> RUNNING -> {PAUSED <-> RUNNING} ->
// {SUCCEEDED | FAILED | STUCK | EXHAUSTED}。
// 同一 Runner 同一时刻至多一轮在途；历史单写者，只追加。
type Runner struct {
	backend Backend
	reg     *Registry
	parser  *Parser
	exec    *Executor
	display Display
	log     SessionLog

	maxIterations int
	loopDetection bool
	onPause       func()

	mu           sync.Mutex
	cond         *sync.Cond
	state        State
	pauseWanted  bool
	pauseSignal  bool
	interrupted  bool
	aborted      bool
	resumeNote   string
	callCancel   context.CancelFunc
	history      []Step
	conversation []*schema.Message
}

func NewRunner(backend Backend, reg *Registry, cfg RunnerConfig) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	r := &Runner{
		backend:       backend,
		reg:           reg,
		parser:        NewParser(reg),
		exec:          NewExecutor(reg, cfg.ToolTimeout),
		display:       cfg.Display,
		log:           cfg.Log,
		maxIterations: cfg.MaxIterations,
		loopDetection: cfg.LoopDetection,
		onPause:       cfg.OnPause,
		state:         StateFresh,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// State 返回当前控制状态（并发安全）。
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History 返回已完成步骤的快照。
func (r *Runner) History() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.history))
	copy(out, r.history)
	return out
}

// Pause 请求协作式暂停。在下一个检查点生效，不抢占在途调用。
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseWanted = true
}

// Interrupt 请求立即暂停：除了置位暂停标记，还会取消在途的
// 模型调用或工具等待。控制器在迭代边界把这次中断当作
// “已暂停、历史保留”，而不是失败。
func (r *Runner) Interrupt() {
	r.mu.Lock()
	cancel := r.callCancel
	r.pauseWanted = true
	r.interrupted = true
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Resume 解除暂停并继续执行。note 非空时会在下一次模型调用前
// 以 user 角色注入对话，且只注入一次（消费后即清除）。
func (r *Runner) Resume(note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseWanted = false
	r.pauseSignal = false
	r.interrupted = false
	r.resumeNote = note
	r.cond.Broadcast()
}

// Abort 终止一次处于暂停中的执行，Run 返回失败结果。
func (r *Runner) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
	r.pauseWanted = false
	r.cond.Broadcast()
}

// Run 同步执行 ReAct 循环直到产生终局结果。
// systemPrompt 为已渲染好的系统指令（含格式说明与工具清单）。
// 非续跑场景下历史与对话从零开始。
func (r *Runner) Run(ctx context.Context, objective string, systemPrompt string) Result {
	r.mu.Lock()
	r.state = StateRunning
	r.aborted = false
	r.interrupted = false
	r.history = nil
	r.conversation = nil
	r.mu.Unlock()

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		// 检查点 1：迭代开始。
		if done := r.checkpoint(); done {
			return r.finish(StateFailed, Result{Success: false, Err: "run aborted by user", Steps: r.History()})
		}

		prompt := r.buildPrompt(iteration, objective, systemPrompt)

		// 检查点 2：模型调用前。恢复时带的补充说明在这里注入。
		if done := r.checkpoint(); done {
			return r.finish(StateFailed, Result{Success: false, Err: "run aborted by user", Steps: r.History()})
		}

		if r.log != nil {
			r.log.LLMPrompt(iteration+1, r.backend.Name(), prompt)
		}

		callCtx, cancel := r.newCallContext(ctx)
		completion, err := r.backend.Call(callCtx, prompt, r.snapshotConversation())
		cancel()
		r.clearCallCancel()

		if err != nil {
			// 外部中断在迭代边界表现为取消错误；按“暂停、历史保留”处理，
			// 恢复后重试同一轮，而不是判为硬失败。
			if r.interruptPending(err) {
				if done := r.checkpoint(); done {
					return r.finish(StateFailed, Result{Success: false, Err: "run aborted by user", Steps: r.History()})
				}
				iteration--
				continue
			}
			return r.failTurn(err)
		}

		completion = r.parser.TruncateMultiStep(completion)
		r.appendMessage(schema.AssistantMessage(completion, nil))
		if r.log != nil {
			r.log.LLMResponse(iteration+1, completion)
		}

		decision := r.parser.Parse(completion)

		// 解析错误：纠偏重试，不计为完成步骤，但消耗迭代预算。
		if decision.Err != "" && decision.Action == "" && !decision.IsFinal {
			r.surfaceError(decision.Err, formatHint)
			r.appendMessage(schema.UserMessage("Error: " + decision.Err + ". " + formatCorrection))
			continue
		}

		if decision.IsFinal {
			r.surfaceThinking(decision.Thought, iteration+1)
			r.surfaceFinal(decision.FinalAnswer)
			step := Step{
				Number:      iteration + 1,
				Thought:     decision.Thought,
				IsFinal:     true,
				FinalAnswer: decision.FinalAnswer,
			}
			r.appendStep(step)
			return r.finish(StateSucceeded, Result{
				Success: true,
				Output:  decision.FinalAnswer,
				Steps:   r.History(),
			})
		}

		// 参数 JSON 解析失败时 Action 仍然有效：把错误并入观察，让模型重来。
		if decision.Err != "" {
			r.surfaceError(decision.Err, formatHint)
			r.appendMessage(schema.UserMessage("Error: " + decision.Err + ". " + formatCorrection))
			continue
		}

		r.surfaceThinking(decision.Thought, iteration+1)
		r.surfaceToolCall(decision.Action, decision.ActionInput, iteration+1)

		// 检查点 3：工具执行前。
		if done := r.checkpoint(); done {
			return r.finish(StateFailed, Result{Success: false, Err: "run aborted by user", Steps: r.History()})
		}

		toolCtx, cancelTool := r.newCallContext(ctx)
		started := time.Now()
		observation := r.exec.Execute(toolCtx, decision.Action, decision.ActionInput)
		// 在 cancelTool 之前取 Err()：之后上下文必然已取消，
		// 无法再区分“中断打断了等待”与“工具已正常跑完”。
		toolInterrupted := r.interruptPending(toolCtx.Err())
		cancelTool()
		r.clearCallCancel()

		if toolInterrupted {
			// 工具等待被中断：同样转入暂停，恢复后重试本轮。
			if done := r.checkpoint(); done {
				return r.finish(StateFailed, Result{Success: false, Err: "run aborted by user", Steps: r.History()})
			}
			iteration--
			continue
		}

		if r.log != nil {
			success := !strings.HasPrefix(observation, "Error")
			r.log.ToolExecuted(decision.Action, time.Since(started), success)
		}
		r.surfaceToolResponse(decision.Action, observation, iteration+1)

		step := Step{
			Number:      iteration + 1,
			Thought:     decision.Thought,
			Action:      decision.Action,
			ActionInput: decision.ActionInput,
			Observation: observation,
		}
		r.appendStep(step)

		if r.loopDetection && r.stuck() {
			return r.finish(StateStuck, Result{
				Success: false,
				Err:     "Agent appears to be stuck in a loop",
				Steps:   r.History(),
			})
		}
	}

	return r.finish(StateExhausted, Result{
		Success: false,
		Err:     "Max iterations reached without finding answer",
		Steps:   r.History(),
	})
}

// buildPrompt 按原始轮换协议组装本轮提示词：
// 首轮用系统指令+目标；后续轮用上一步观察+格式提醒。
func (r *Runner) buildPrompt(iteration int, objective string, systemPrompt string) string {
	if iteration == 0 {
		return systemPrompt + "\n\nObjective: " + objective + "\n\nLet's solve this step by step."
	}

	r.mu.Lock()
	var last *Step
	if n := len(r.history); n > 0 {
		last = &r.history[n-1]
	}
	r.mu.Unlock()

	if last != nil {
		return "Observation: " + last.Observation +
			"\n\nWhat's your next step? Use the format:\nThought: [reasoning]\nAction: [tool_name]\nAction Input: {\"param\": \"value\"}" +
			"\n\nOr if you have the answer:\nThought: [reasoning]\nFinal Answer: [answer]"
	}
	return "Objective: " + objective + "\n\nYou MUST use this format:\nThought: [reasoning]\nAction: [tool_name]\nAction Input: {\"param\": \"value\"}"
}

// stuck 判断最近三个工具步是否 (动作名, 规范化参数) 两两相同。
// 终止步没有动作，天然不进窗口。
func (r *Runner) stuck() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) < 3 {
		return false
	}
	recent := r.history[len(r.history)-3:]
	first := ""
	for i, step := range recent {
		if step.Action == "" {
			return false
		}
		key := step.Action + "\x00" + step.CanonicalInput()
		if i == 0 {
			first = key
		} else if key != first {
			return false
		}
	}
	return true
}

// failTurn 把迭代边界捕获的错误分类并转成失败结果。
func (r *Runner) failTurn(err error) Result {
	suggestion := classifyBackendError(err)
	r.surfaceError(err.Error(), suggestion)
	return r.finish(StateFailed, Result{Success: false, Err: err.Error(), Steps: r.History()})
}

// finish 落定终局状态。所有出口都走这里，终局事件统一入日志。
func (r *Runner) finish(state State, res Result) Result {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	if r.log != nil {
		detail := res.Output
		if !res.Success {
			detail = res.Err
		}
		r.log.RunFinished(res.Success, detail, len(res.Steps))
	}
	return res
}

// checkpoint 在固定位置观察暂停请求；被暂停时阻塞直到 Resume/Abort。
// 返回 true 表示执行已被放弃。恢复时携带的补充说明在此注入对话。
func (r *Runner) checkpoint() bool {
	r.mu.Lock()
	for r.pauseWanted && !r.aborted {
		r.state = StatePaused
		if r.onPause != nil && !r.pauseSignal {
			r.pauseSignal = true
			go r.onPause()
		}
		r.cond.Wait()
	}
	if r.aborted {
		r.mu.Unlock()
		return true
	}
	r.state = StateRunning
	note := r.resumeNote
	r.resumeNote = ""
	if note != "" {
		r.conversation = append(r.conversation, schema.UserMessage(note))
	}
	r.mu.Unlock()
	return false
}

// newCallContext 派生一个可被 Interrupt 取消的调用上下文。
func (r *Runner) newCallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.callCancel = cancel
	r.mu.Unlock()
	return callCtx, cancel
}

func (r *Runner) clearCallCancel() {
	r.mu.Lock()
	r.callCancel = nil
	r.mu.Unlock()
}

// interruptPending 判断一次调用失败是否源自 Interrupt（而非后端故障）。
// 只认 Interrupt 置位的标记：协作式 Pause 不抢占在途调用，
// 已完成的工具结果照常入史，暂停留到下一个检查点生效。
func (r *Runner) interruptPending(err error) bool {
	if err == nil {
		return false
	}
	r.mu.Lock()
	interrupted := r.interrupted
	r.mu.Unlock()
	return interrupted && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (r *Runner) appendStep(step Step) {
	r.mu.Lock()
	r.history = append(r.history, step)
	r.mu.Unlock()
}

func (r *Runner) appendMessage(msg *schema.Message) {
	r.mu.Lock()
	r.conversation = append(r.conversation, msg)
	r.mu.Unlock()
}

func (r *Runner) snapshotConversation() []*schema.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*schema.Message, len(r.conversation))
	copy(out, r.conversation)
	return out
}

// paused 期间抑制展示输出；步骤与对话记录不受影响。
func (r *Runner) displaySuppressed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pauseWanted || r.state == StatePaused
}

func (r *Runner) surfaceThinking(thought string, step int) {
	if r.display != nil && !r.displaySuppressed() {
		r.display.PrintThinking(thought, step)
	}
}

func (r *Runner) surfaceToolCall(name string, input map[string]any, step int) {
	if r.display != nil && !r.displaySuppressed() {
		r.display.PrintToolCall(name, input, step)
	}
}

func (r *Runner) surfaceToolResponse(name string, result string, step int) {
	if r.display != nil && !r.displaySuppressed() {
		r.display.PrintToolResponse(name, result, step)
	}
}

func (r *Runner) surfaceFinal(answer string) {
	if r.display != nil && !r.displaySuppressed() {
		r.display.PrintFinalAnswer(answer)
	}
}

func (r *Runner) surfaceError(msg string, suggestion string) {
	if r.display != nil && !r.displaySuppressed() {
		r.display.PrintError(msg, suggestion)
	}
}
