package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/wwwzy/redagent/internal/agent"
	"github.com/wwwzy/redagent/internal/config"
	"github.com/wwwzy/redagent/internal/llm"
	"github.com/wwwzy/redagent/internal/logging"
	"github.com/wwwzy/redagent/internal/modes"
	"github.com/wwwzy/redagent/internal/prompts"
	"github.com/wwwzy/redagent/internal/storage"
)

// REPL 是控制台交互主循环：命令分发、目标执行、暂停补充指引。
type REPL struct {
	cfg          *config.Config
	display      *DisplayManager
	registry     *agent.Registry
	logger       *logging.SessionLogger
	db           *storage.Storage
	availability llm.Availability

	backend   llm.Backend
	mode      modes.Mode
	sessionID string

	maxIterations int
	loopDetection bool

	rl *readline.Instance
}

func NewREPL(
	cfg *config.Config,
	display *DisplayManager,
	registry *agent.Registry,
	logger *logging.SessionLogger,
	db *storage.Storage,
) *REPL {
	return &REPL{
		cfg:           cfg,
		display:       display,
		registry:      registry,
		logger:        logger,
		db:            db,
		mode:          modes.General,
		sessionID:     uuid.New().String(),
		maxIterations: cfg.Agent.MaxIterations,
		loopDetection: cfg.Agent.LoopDetection,
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/agent",
			readline.PcItem("gemini"),
			readline.PcItem("ollama"),
			readline.PcItem("huggingface"),
			readline.PcItem("ark"),
		),
		readline.PcItem("/model"),
		readline.PcItem("/mode",
			readline.PcItem("general"),
			readline.PcItem("web-ctf"),
		),
		readline.PcItem("/setting",
			readline.PcItem("truncate", readline.PcItem("on"), readline.PcItem("off")),
			readline.PcItem("max-iterations"),
			readline.PcItem("loop-detection", readline.PcItem("on"), readline.PcItem("off")),
		),
		readline.PcItem("/examples"),
		readline.PcItem("/help"),
		readline.PcItem("/clear"),
		readline.PcItem("/exit"),
		readline.PcItem("/quit"),
	)
}

// Run 进入交互循环，直到用户退出或输入流结束。
func (r *REPL) Run(ctx context.Context) error {
	r.availability = llm.CheckAvailability(r.cfg)
	r.logger.SessionStarted(r.sessionID)

	r.printWelcome()
	r.printSystemStatus()

	if !r.availability.Any() {
		r.display.PrintError(
			"No LLM providers available.",
			"至少配置一个提供方：\n"+
				"1. 在环境或配置文件中设置 GEMINI_API_KEY\n"+
				"2. 启动 Ollama: ollama serve && ollama pull "+r.cfg.Ollama.Model,
		)
		return fmt.Errorf("no llm providers available")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "redagent> ",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			r.display.Printf("输入 /exit 退出。\n")
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if IsCommand(line) {
			if quit := r.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		r.runObjective(ctx, line)
	}
}

func (r *REPL) printWelcome() {
	r.display.PrintStatus([]string{
		"欢迎使用 RedAgent！",
		"",
		"快速开始：",
		"1. 选择后端：/agent gemini 或 /agent ollama",
		"2. 选择模式：/mode web-ctf",
		"3. 直接描述你的挑战，交给 Agent 解决",
		"",
		"输入 /help 查看全部命令。",
	}, "🛡️  RedAgent")
}

func (r *REPL) printSystemStatus() {
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "⚠"
	}
	lines := []string{
		fmt.Sprintf("%s Gemini API: %s", mark(r.availability.Gemini), configuredText(r.availability.Gemini)),
		fmt.Sprintf("%s Ollama: %s", mark(r.availability.Ollama), ollamaText(r.availability.Ollama, r.cfg.Ollama.Model)),
		fmt.Sprintf("%s Hugging Face: %s", mark(r.availability.HuggingFace), configuredText(r.availability.HuggingFace)),
		fmt.Sprintf("%s Ark: %s", mark(r.availability.Ark), configuredText(r.availability.Ark)),
	}
	r.display.PrintStatus(lines, "System Status")
}

func configuredText(ok bool) string {
	if ok {
		return "Configured"
	}
	return "Not configured"
}

func ollamaText(ok bool, model string) string {
	if ok {
		return fmt.Sprintf("Running (%s)", model)
	}
	return "Not available"
}

// handleCommand 返回 true 表示用户要求退出。
func (r *REPL) handleCommand(ctx context.Context, line string) bool {
	cmd := ParseCommand(line)
	if cmd == nil {
		r.display.Printf("未知命令。输入 /help 查看可用命令。\n")
		return false
	}

	switch cmd.Type {
	case "exit", "quit":
		return true
	case "help":
		r.display.PrintStatus(strings.Split(HelpText, "\n"), "帮助")
	case "clear":
		r.display.Printf("\033[2J\033[H")
	case "agent":
		r.selectAgent(ctx, cmd.Value)
	case "model":
		r.selectModel(cmd.Value)
	case "mode":
		r.selectMode(cmd.Value)
	case "setting":
		r.applySetting(cmd.Value, cmd.Arg)
	case "examples":
		r.printExamples()
	}
	return false
}

func (r *REPL) selectAgent(ctx context.Context, name string) {
	name = strings.ToLower(name)
	switch name {
	case "gemini":
		if !r.availability.Gemini {
			r.display.PrintError("Gemini API not available", "请设置 GEMINI_API_KEY 环境变量")
			return
		}
	case "ollama":
		if !r.availability.Ollama {
			r.display.PrintError("Ollama not available",
				fmt.Sprintf("请先启动 Ollama 并拉取模型：\n  ollama serve\n  ollama pull %s", r.cfg.Ollama.Model))
			return
		}
	case "huggingface", "hf":
		if !r.availability.HuggingFace {
			r.display.PrintError("Hugging Face API not available", "请设置 HUGGINGFACE_API_KEY 环境变量")
			return
		}
	case "ark":
		if !r.availability.Ark {
			r.display.PrintError("Ark not available", "请设置 ARK_API_KEY 与 ARK_MODEL_ID 环境变量")
			return
		}
	}

	backend, err := llm.New(ctx, name, r.cfg)
	if err != nil {
		r.display.PrintError(err.Error(), "可选后端："+strings.Join(llm.Names(), ", "))
		return
	}
	r.backend = backend
	r.display.Printf("✓ 已选择 %s (%s)\n", backend.Name(), backend.Model())
	r.logger.AgentSelected(backend.Name(), backend.Model())
}

func (r *REPL) selectModel(name string) {
	if r.backend == nil {
		r.display.PrintError("No agent selected", "先执行 /agent <name> 再切换模型")
		return
	}
	if err := r.backend.SetModel(name); err != nil {
		r.display.PrintError(fmt.Sprintf("切换模型失败: %s", err), "")
		return
	}
	r.display.Printf("✓ %s 模型已切换为 %s\n", r.backend.Name(), name)
	r.logger.AgentSelected(r.backend.Name(), name)
}

func (r *REPL) selectMode(name string) {
	mode, ok := modes.Get(name)
	if !ok {
		r.display.PrintError(
			fmt.Sprintf("Unknown mode %q", name),
			"可选模式："+strings.Join(modes.List(), ", "))
		return
	}
	r.mode = mode
	r.display.Printf("✓ 已切换到 %s 模式\n", mode.DisplayName)
	r.logger.ModeSelected(mode.Name)
}

func (r *REPL) applySetting(key string, value string) {
	switch strings.ToLower(key) {
	case "truncate":
		on, ok := parseOnOff(value)
		if !ok {
			r.display.Printf("用法：/setting truncate on|off\n")
			return
		}
		r.display.SetTruncation(on)
		r.display.Printf("✓ 截断已%s\n", onOffText(on))
	case "max-iterations":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			r.display.Printf("用法：/setting max-iterations <正整数>\n")
			return
		}
		r.maxIterations = n
		r.display.Printf("✓ 最大迭代数已设为 %d\n", n)
	case "loop-detection":
		on, ok := parseOnOff(value)
		if !ok {
			r.display.Printf("用法：/setting loop-detection on|off\n")
			return
		}
		r.loopDetection = on
		r.display.Printf("✓ 重复动作检测已%s\n", onOffText(on))
	default:
		r.display.Printf("未知设置项 %q。可用：truncate、max-iterations、loop-detection\n", key)
	}
}

func parseOnOff(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	return false, false
}

func onOffText(on bool) string {
	if on {
		return "开启"
	}
	return "关闭"
}

func (r *REPL) printExamples() {
	var lines []string
	for _, c := range modes.ExampleChallenges {
		lines = append(lines, fmt.Sprintf("📌 %s", c.Name))
		lines = append(lines, fmt.Sprintf("   Description: %s", c.Description))
		if c.Challenge != "" {
			lines = append(lines, fmt.Sprintf("   Challenge: %s", c.Challenge))
		}
		if c.URL != "" {
			lines = append(lines, fmt.Sprintf("   URL: %s", c.URL))
		}
		lines = append(lines, fmt.Sprintf("   Hint: %s", c.Hint))
		lines = append(lines, "")
	}
	r.display.PrintStatus(lines, "🎯 练习题目")
}

// runObjective 执行一个目标：装配 Runner，接管 Ctrl+C 做暂停，
// 结束后落库并打印结果。
func (r *REPL) runObjective(ctx context.Context, objective string) {
	if r.backend == nil {
		r.display.PrintError("No agent selected", "先执行 /agent gemini 或 /agent ollama 选择后端")
		return
	}

	systemPrompt := prompts.Render(r.mode.SystemContext, r.registry.Describe())

	var runner *agent.Runner
	runner = agent.NewRunner(r.backend, r.registry, agent.RunnerConfig{
		MaxIterations: r.maxIterations,
		LoopDetection: r.loopDetection,
		ToolTimeout:   r.cfg.Agent.ToolTimeout,
		Display:       r.display,
		Log:           r.logger,
		OnPause: func() {
			r.promptGuidance(runner)
		},
	})

	// 执行期间 Ctrl+C 解释为暂停请求而非进程退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				runner.Interrupt()
			case <-done:
				return
			}
		}
	}()

	r.logger.RunStarted(r.sessionID, objective, r.backend.Name(), r.mode.Name)
	started := time.Now().UTC()
	result := runner.Run(ctx, objective, systemPrompt)
	finished := time.Now().UTC()

	close(done)
	signal.Stop(sigCh)

	if !result.Success && result.Err != "" {
		r.display.PrintError(result.Err, suggestionFor(runner.State()))
	}
	r.display.Printf("状态：%s，共 %d 步，耗时 %s\n",
		runner.State(), len(result.Steps), finished.Sub(started).Round(time.Millisecond))

	r.persistRun(ctx, objective, runner, result, started, finished)
}

// promptGuidance 暂停时向用户征集补充指引。
// 在独立 goroutine 里执行，通过 Resume/Abort 唤醒控制器。
func (r *REPL) promptGuidance(runner *agent.Runner) {
	r.logger.RunPaused("user interrupt")
	r.display.Printf("\n⏸ 已暂停。输入补充指引后回车继续；直接回车继续；输入 abort 终止。\n")

	line, err := r.rl.Readline()
	if err != nil {
		runner.Resume("")
		return
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "abort") {
		runner.Abort()
		return
	}
	r.logger.RunResumed(line != "")
	runner.Resume(line)
}

func suggestionFor(state agent.State) string {
	switch state {
	case agent.StateStuck:
		return "换个思路描述目标，或提高模型温度后重试"
	case agent.StateExhausted:
		return "用 /setting max-iterations 提高迭代上限后重试"
	default:
		return ""
	}
}

// persistRun 把执行结果写入 SQLite；存储未启用时跳过。
func (r *REPL) persistRun(
	ctx context.Context,
	objective string,
	runner *agent.Runner,
	result agent.Result,
	started, finished time.Time,
) {
	if r.db == nil {
		return
	}

	run := &storage.Run{
		SessionID:   r.sessionID,
		Objective:   objective,
		Agent:       r.backend.Name(),
		Mode:        r.mode.Name,
		Outcome:     runner.State().String(),
		Answer:      result.Output,
		ErrorDetail: result.Err,
		StepCount:   len(result.Steps),
		StartedAt:   started,
		FinishedAt:  finished,
	}
	if err := r.db.InsertRun(ctx, run); err != nil {
		r.logger.Error("persist run", err)
		return
	}

	records := make([]storage.StepRecord, 0, len(result.Steps))
	for _, s := range result.Steps {
		records = append(records, storage.StepRecord{
			RunID:       run.ID,
			Ordinal:     s.Number,
			Thought:     s.Thought,
			Action:      s.Action,
			InputJSON:   s.CanonicalInput(),
			Observation: s.Observation,
			IsFinal:     s.IsFinal,
			FinalAnswer: s.FinalAnswer,
		})
	}
	if err := r.db.InsertStepRecords(ctx, records); err != nil {
		r.logger.Error("persist steps", err)
	}
}
