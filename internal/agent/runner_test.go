package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend 按脚本依次返回补全，并记录每次调用的现场。
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	histories [][]*schema.Message
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prompts = append(b.prompts, prompt)
	snapshot := make([]*schema.Message, len(history))
	copy(snapshot, history)
	b.histories = append(b.histories, snapshot)

	idx := b.calls
	b.calls++
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	}
	return b.responses[idx], nil
}

func newRunnerRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(&ToolDefinition{
		Name: "echo",
		Desc: "echoes input",
		Params: map[string]*ParamSpec{
			"text": {Type: schema.String},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("echo:%v", args["text"]), nil
		},
	}))
	return reg
}

const testSystemPrompt = "You are a test agent."

func TestRunner_SuccessAfterToolStep(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		"Thought: try the tool\nAction: echo\nAction Input: {\"text\": \"hi\"}",
		"Thought: got it\nFinal Answer: FLAG{done}",
	}}
	r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{MaxIterations: 5})

	res := r.Run(context.Background(), "find the flag", testSystemPrompt)

	assert.True(t, res.Success)
	assert.Equal(t, "FLAG{done}", res.Output)
	require.Len(t, res.Steps, 2)

	assert.Equal(t, "echo", res.Steps[0].Action)
	assert.Equal(t, "echo:hi", res.Steps[0].Observation)
	assert.False(t, res.Steps[0].IsFinal)

	assert.True(t, res.Steps[1].IsFinal)
	assert.Equal(t, "FLAG{done}", res.Steps[1].FinalAnswer)
	assert.Equal(t, StateSucceeded, r.State())

	// 首轮提示词带系统指令与目标，后续轮以上一步观察开头
	require.Len(t, backend.prompts, 2)
	assert.True(t, strings.HasPrefix(backend.prompts[0], testSystemPrompt))
	assert.Contains(t, backend.prompts[0], "Objective: find the flag")
	assert.True(t, strings.HasPrefix(backend.prompts[1], "Observation: echo:hi"))

	// 第二次调用的历史里有第一轮的 assistant 消息
	require.Len(t, backend.histories[1], 1)
	assert.Equal(t, schema.Assistant, backend.histories[1][0].Role)
}

func TestRunner_ParseErrorInjectsCorrection(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		"Let me think about this without any structure.",
		"Thought: ok\nFinal Answer: FLAG{recovered}",
	}}
	r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{MaxIterations: 5})

	res := r.Run(context.Background(), "obj", testSystemPrompt)

	assert.True(t, res.Success)
	// 解析失败那轮不产生步骤
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].IsFinal)

	// 纠偏消息以 user 角色追加在失败的 assistant 消息之后
	require.Len(t, backend.histories, 2)
	second := backend.histories[1]
	require.Len(t, second, 2)
	assert.Equal(t, schema.Assistant, second[0].Role)
	assert.Equal(t, schema.User, second[1].Role)
	assert.True(t, strings.HasPrefix(second[1].Content,
		"Error: No action specified. Please specify which tool to use."))
	assert.Contains(t, second[1].Content, "You MUST respond with:")
}

func TestRunner_LoopDetection(t *testing.T) {
	repeat := "Thought: again\nAction: echo\nAction Input: {\"text\": \"same\"}"

	t.Run("连续三次相同动作判卡死", func(t *testing.T) {
		backend := &scriptedBackend{responses: []string{repeat}}
		r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
			MaxIterations: 10,
			LoopDetection: true,
		})

		res := r.Run(context.Background(), "obj", testSystemPrompt)

		assert.False(t, res.Success)
		assert.Equal(t, "Agent appears to be stuck in a loop", res.Err)
		assert.Len(t, res.Steps, 3)
		assert.Equal(t, StateStuck, r.State())
	})

	t.Run("参数不同不算循环", func(t *testing.T) {
		backend := &scriptedBackend{responses: []string{
			repeat,
			repeat,
			"Thought: change\nAction: echo\nAction Input: {\"text\": \"different\"}",
			"Thought: ok\nFinal Answer: done",
		}}
		r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
			MaxIterations: 10,
			LoopDetection: true,
		})

		res := r.Run(context.Background(), "obj", testSystemPrompt)
		assert.True(t, res.Success)
		assert.Len(t, res.Steps, 4)
	})

	t.Run("检测关闭时跑满迭代", func(t *testing.T) {
		backend := &scriptedBackend{responses: []string{repeat}}
		r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
			MaxIterations: 4,
			LoopDetection: false,
		})

		res := r.Run(context.Background(), "obj", testSystemPrompt)
		assert.False(t, res.Success)
		assert.Equal(t, "Max iterations reached without finding answer", res.Err)
		assert.Len(t, res.Steps, 4)
		assert.Equal(t, StateExhausted, r.State())
	})
}

func TestRunner_ExhaustionHistoryLength(t *testing.T) {
	// 每轮参数都不同，绕开循环检测，验证史长恰好等于迭代上限
	backend := &scriptedBackend{}
	for i := 0; i < 6; i++ {
		backend.responses = append(backend.responses,
			fmt.Sprintf("Thought: step\nAction: echo\nAction Input: {\"text\": \"%d\"}", i))
	}
	r := NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
		MaxIterations: 6,
		LoopDetection: true,
	})

	res := r.Run(context.Background(), "obj", testSystemPrompt)
	assert.False(t, res.Success)
	assert.Len(t, res.Steps, 6)
	for i, s := range res.Steps {
		assert.Equal(t, i+1, s.Number)
	}
}

func TestRunner_PauseResumeInjection(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		"Thought: ok\nFinal Answer: done",
	}}

	var r *Runner
	resumed := make(chan struct{})
	r = NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
		MaxIterations: 5,
		OnPause: func() {
			r.Resume("focus on the login form")
			close(resumed)
		},
	})

	r.Pause()
	res := r.Run(context.Background(), "obj", testSystemPrompt)

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("pause callback never fired")
	}

	assert.True(t, res.Success)
	// 恢复时的补充说明以 user 角色注入，且只注入一次
	require.Len(t, backend.histories, 1)
	require.Len(t, backend.histories[0], 1)
	assert.Equal(t, schema.User, backend.histories[0][0].Role)
	assert.Equal(t, "focus on the login form", backend.histories[0][0].Content)
}

func TestRunner_AbortWhilePaused(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		"Thought: ok\nFinal Answer: done",
	}}

	var r *Runner
	r = NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
		MaxIterations: 5,
		OnPause: func() {
			r.Abort()
		},
	})

	r.Pause()
	res := r.Run(context.Background(), "obj", testSystemPrompt)

	assert.False(t, res.Success)
	assert.Equal(t, "run aborted by user", res.Err)
	assert.Equal(t, StateFailed, r.State())
	assert.Zero(t, backend.calls)
}

// blockingBackend 首次调用阻塞到 ctx 取消，之后按脚本返回。
type blockingBackend struct {
	scripted scriptedBackend
	mu       sync.Mutex
	calls    int
	started  chan struct{}
}

func (b *blockingBackend) Name() string { return "blocking" }

func (b *blockingBackend) Call(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	b.mu.Lock()
	first := b.calls == 0
	b.calls++
	b.mu.Unlock()

	if first {
		close(b.started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	return b.scripted.Call(ctx, prompt, history)
}

// recordingLog 记录会话日志事件，供断言用。
type recordingLog struct {
	mu          sync.Mutex
	toolNames   []string
	toolSuccess []bool
	finished    int
	finishedOK  bool
}

func (l *recordingLog) LLMPrompt(step int, model string, prompt string) {}
func (l *recordingLog) LLMResponse(step int, response string)           {}

func (l *recordingLog) ToolExecuted(tool string, duration time.Duration, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toolNames = append(l.toolNames, tool)
	l.toolSuccess = append(l.toolSuccess, success)
}

func (l *recordingLog) RunFinished(success bool, detail string, steps int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished++
	l.finishedOK = success
}

func TestRunner_PauseDuringToolKeepsObservation(t *testing.T) {
	// 工具执行期间请求协作式暂停：已完成的观察必须入史，
	// 暂停在下一轮开头生效，恢复后不得重试本轮。
	toolStarted := make(chan struct{})
	toolRelease := make(chan struct{})
	toolCalls := 0

	reg := NewRegistry()
	require.NoError(t, reg.Register(&ToolDefinition{
		Name: "probe_target",
		Desc: "slow probe",
		Params: map[string]*ParamSpec{
			"target": {Type: schema.String},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			toolCalls++
			close(toolStarted)
			<-toolRelease
			return fmt.Sprintf("result-%d", toolCalls), nil
		},
	}))

	backend := &scriptedBackend{responses: []string{
		"Thought: probe it\nAction: probe_target\nAction Input: {\"target\": \"login\"}",
		"Thought: ok\nFinal Answer: FLAG{kept}",
	}}

	var r *Runner
	r = NewRunner(backend, reg, RunnerConfig{
		MaxIterations: 5,
		OnPause: func() {
			r.Resume("")
		},
	})

	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), "obj", testSystemPrompt)
	}()

	<-toolStarted
	r.Pause()
	close(toolRelease)

	select {
	case res := <-done:
		assert.True(t, res.Success)
		require.Len(t, res.Steps, 2)
		assert.Equal(t, "probe_target", res.Steps[0].Action)
		assert.Equal(t, "result-1", res.Steps[0].Observation)
		assert.Equal(t, 1, toolCalls)

		// 下一轮提示词携带真实观察，而不是重试上一轮
		require.Len(t, backend.prompts, 2)
		assert.True(t, strings.HasPrefix(backend.prompts[1], "Observation: result-1"))
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after pause/resume")
	}
}

func TestRunner_ToolTimeoutContinuesLoop(t *testing.T) {
	// 工具超时产生超时观察，循环继续走下一轮而不是终止
	reg := NewRegistry()
	require.NoError(t, reg.Register(&ToolDefinition{
		Name: "sleepy",
		Desc: "never finishes in time",
		Params: map[string]*ParamSpec{
			"target": {Type: schema.String},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			time.Sleep(500 * time.Millisecond)
			return "too late", nil
		},
	}))

	backend := &scriptedBackend{responses: []string{
		"Thought: wait for it\nAction: sleepy\nAction Input: {\"target\": \"x\"}",
		"Thought: move on\nFinal Answer: FLAG{moved-on}",
	}}
	log := &recordingLog{}
	r := NewRunner(backend, reg, RunnerConfig{
		MaxIterations: 5,
		ToolTimeout:   50 * time.Millisecond,
		Log:           log,
	})

	res := r.Run(context.Background(), "obj", testSystemPrompt)

	assert.True(t, res.Success)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "Error: tool 'sleepy' timed out after 50ms", res.Steps[0].Observation)
	assert.True(t, res.Steps[1].IsFinal)

	// 超时观察原样进入下一轮提示词
	require.Len(t, backend.prompts, 2)
	assert.True(t, strings.HasPrefix(backend.prompts[1], "Observation: Error: tool 'sleepy' timed out"))

	// 超时在日志里记为失败的工具执行
	require.Len(t, log.toolSuccess, 1)
	assert.False(t, log.toolSuccess[0])
}

func TestRunner_LogOutcomes(t *testing.T) {
	t.Run("工具成功与失败分别记录", func(t *testing.T) {
		reg := newRunnerRegistry(t)
		require.NoError(t, reg.Register(&ToolDefinition{
			Name: "broken",
			Desc: "always fails",
			Params: map[string]*ParamSpec{
				"target": {Type: schema.String},
			},
			Fn: func(ctx context.Context, args map[string]any) (string, error) {
				return "", fmt.Errorf("boom")
			},
		}))

		backend := &scriptedBackend{responses: []string{
			"Thought: try echo\nAction: echo\nAction Input: {\"text\": \"hi\"}",
			"Thought: try broken\nAction: broken\nAction Input: {\"target\": \"x\"}",
			"Thought: ok\nFinal Answer: done",
		}}
		log := &recordingLog{}
		r := NewRunner(backend, reg, RunnerConfig{MaxIterations: 5, Log: log})

		res := r.Run(context.Background(), "obj", testSystemPrompt)
		assert.True(t, res.Success)

		require.Equal(t, []string{"echo", "broken"}, log.toolNames)
		require.Len(t, log.toolSuccess, 2)
		assert.True(t, log.toolSuccess[0])
		assert.False(t, log.toolSuccess[1])
		assert.Equal(t, 1, log.finished)
		assert.True(t, log.finishedOK)
	})

	t.Run("放弃的执行也有终局日志", func(t *testing.T) {
		backend := &scriptedBackend{responses: []string{
			"Thought: ok\nFinal Answer: done",
		}}
		log := &recordingLog{}
		var r *Runner
		r = NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
			MaxIterations: 5,
			Log:           log,
			OnPause: func() {
				r.Abort()
			},
		})

		r.Pause()
		res := r.Run(context.Background(), "obj", testSystemPrompt)

		assert.False(t, res.Success)
		assert.Equal(t, 1, log.finished)
		assert.False(t, log.finishedOK)
	})
}

func TestRunner_InterruptDuringCallPausesNotFails(t *testing.T) {
	backend := &blockingBackend{
		started: make(chan struct{}),
		scripted: scriptedBackend{responses: []string{
			"Thought: ok\nFinal Answer: FLAG{after-resume}",
		}},
	}

	var r *Runner
	r = NewRunner(backend, newRunnerRegistry(t), RunnerConfig{
		MaxIterations: 5,
		OnPause: func() {
			r.Resume("")
		},
	})

	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), "obj", testSystemPrompt)
	}()

	<-backend.started
	r.Interrupt()

	select {
	case res := <-done:
		// 中断被当作暂停处理，恢复后同一轮重试并正常结束
		assert.True(t, res.Success)
		assert.Equal(t, "FLAG{after-resume}", res.Output)
		assert.Equal(t, StateSucceeded, r.State())
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after interrupt/resume")
	}
}
