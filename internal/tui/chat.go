// Package tui 提供全屏的 bubbletea 聊天界面，chat --ui tui 时启用。
// 控制循环的展示事件通过消息队列进入渲染层。
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/wwwzy/redagent/internal/agent"
	"github.com/wwwzy/redagent/internal/config"
	"github.com/wwwzy/redagent/internal/llm"
	"github.com/wwwzy/redagent/internal/logging"
	"github.com/wwwzy/redagent/internal/modes"
	"github.com/wwwzy/redagent/internal/prompts"
)

// ChatUI 承载一次全屏会话所需的依赖。
type ChatUI struct {
	Backend  llm.Backend
	Registry *agent.Registry
	Cfg      *config.Config
	Logger   *logging.SessionLogger
	Mode     modes.Mode
}

func (u *ChatUI) Run(ctx context.Context) error {
	m := newChatModel(ctx, u)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.sink.bind(p.Send)
	_, err := p.Run()
	return err
}

type feedKind int

const (
	feedUser feedKind = iota
	feedThought
	feedTool
	feedFinal
	feedError
	feedStatus
)

type feedItem struct {
	kind feedKind
	body string
}

type feedMsg feedItem

type runDoneMsg struct {
	state  agent.State
	result agent.Result
}

type pausePromptMsg struct{}
type cancelMsg struct{}

// eventSink 实现 agent.Display，把循环事件转发进 bubbletea 队列。
// send 在程序构造完成后注入。
type eventSink struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (s *eventSink) bind(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}

func (s *eventSink) emit(kind feedKind, body string) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(feedMsg{kind: kind, body: body})
	}
}

func (s *eventSink) PrintThinking(thought string, step int) {
	s.emit(feedThought, fmt.Sprintf("Step %d\n\n%s", step, thought))
}

func (s *eventSink) PrintToolCall(name string, input map[string]any, step int) {
	var b strings.Builder
	fmt.Fprintf(&b, "调用 %s\n", name)
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, input[k])
	}
	s.emit(feedTool, strings.TrimRight(b.String(), "\n"))
}

func (s *eventSink) PrintToolResponse(name string, result string, step int) {
	s.emit(feedTool, fmt.Sprintf("%s 返回\n%s", name, result))
}

func (s *eventSink) PrintFinalAnswer(answer string) {
	s.emit(feedFinal, answer)
}

func (s *eventSink) PrintError(errMsg string, suggestion string) {
	body := errMsg
	if suggestion != "" {
		body += "\n\n" + suggestion
	}
	s.emit(feedError, body)
}

type chatModel struct {
	ctx  context.Context
	deps *ChatUI
	sink *eventSink

	width  int
	height int

	viewport   viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	running    bool
	paused     bool
	followTail bool

	feed   []feedItem
	runner *agent.Runner

	renderer *glamour.TermRenderer
}

func newChatModel(ctx context.Context, deps *ChatUI) *chatModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	ti := textinput.New()
	ti.Placeholder = "描述目标，回车执行"
	ti.Prompt = ""
	ti.Focus()

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return &chatModel{
		ctx:        ctx,
		deps:       deps,
		sink:       &eventSink{},
		viewport:   vp,
		input:      ti,
		spinner:    s,
		followTail: true,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitCancel(m.ctx))
}

func waitCancel(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return cancelMsg{}
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cancelMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := 3
		footerHeight := 1
		chatHeight := m.height - inputHeight - footerHeight
		if chatHeight < 1 {
			chatHeight = 1
		}

		m.viewport.Width = m.width
		m.viewport.Height = chatHeight
		m.input.Width = max(10, m.width-4)

		m.resetMarkdownRenderer()
		m.updateViewportContent(m.renderChat())
		return m, nil

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case feedMsg:
		m.feed = append(m.feed, feedItem(msg))
		m.followTail = true
		m.updateViewportContent(m.renderChat())
		return m, nil

	case pausePromptMsg:
		m.paused = true
		m.feed = append(m.feed, feedItem{
			kind: feedStatus,
			body: "⏸ 已暂停。输入补充指引后回车继续；直接回车继续；再按 Ctrl+C 终止。",
		})
		m.updateViewportContent(m.renderChat())
		return m, nil

	case runDoneMsg:
		m.running = false
		m.paused = false
		m.runner = nil
		m.feed = append(m.feed, feedItem{
			kind: feedStatus,
			body: fmt.Sprintf("状态：%s，共 %d 步", msg.state, len(msg.result.Steps)),
		})
		m.followTail = true
		m.updateViewportContent(m.renderChat())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.running && m.paused && m.runner != nil {
				m.runner.Abort()
				return m, nil
			}
			if m.running && m.runner != nil {
				m.runner.Interrupt()
				return m, nil
			}
			return m, tea.Quit
		case "pgup", "pageup":
			m.viewport.PageUp()
			m.followTail = false
			return m, nil
		case "pgdown", "pagedown":
			m.viewport.PageDown()
			if m.viewport.AtBottom() {
				m.followTail = true
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)

		if msg.String() == "enter" {
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")

			if m.paused && m.runner != nil {
				m.paused = false
				if m.deps.Logger != nil {
					m.deps.Logger.RunResumed(text != "")
				}
				m.runner.Resume(text)
				return m, cmd
			}
			if m.running {
				return m, cmd
			}
			if text == "" {
				return m, cmd
			}
			switch strings.ToLower(text) {
			case "exit", "quit":
				return m, tea.Quit
			}

			m.feed = append(m.feed, feedItem{kind: feedUser, body: text})
			m.followTail = true
			m.updateViewportContent(m.renderChat())
			m.running = true
			return m, tea.Batch(cmd, m.startRun(text), m.spinner.Tick)
		}

		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startRun 在后台 goroutine 里驱动控制循环，结束后回投 runDoneMsg。
func (m *chatModel) startRun(objective string) tea.Cmd {
	systemPrompt := prompts.Render(m.deps.Mode.SystemContext, m.deps.Registry.Describe())

	var runner *agent.Runner
	runner = agent.NewRunner(m.deps.Backend, m.deps.Registry, agent.RunnerConfig{
		MaxIterations: m.deps.Cfg.Agent.MaxIterations,
		LoopDetection: m.deps.Cfg.Agent.LoopDetection,
		ToolTimeout:   m.deps.Cfg.Agent.ToolTimeout,
		Display:       m.sink,
		Log:           m.deps.Logger,
		OnPause: func() {
			m.sink.mu.Lock()
			send := m.sink.send
			m.sink.mu.Unlock()
			if send != nil {
				send(pausePromptMsg{})
			}
		},
	})
	m.runner = runner

	ctx := m.ctx
	return func() tea.Msg {
		result := runner.Run(ctx, objective, systemPrompt)
		return runDoneMsg{state: runner.State(), result: result}
	}
}

func (m *chatModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("RedAgent · %s · %s", m.deps.Backend.Name(), m.deps.Mode.DisplayName))

	chat := m.viewport.View()
	inputLine := m.inputView()
	footer := m.footerView()

	return lipgloss.JoinVertical(lipgloss.Left, header, chat, inputLine, footer)
}

func (m *chatModel) footerView() string {
	left := "Enter 发送 | PgUp/PgDn 滚动 | Ctrl+C 暂停/退出"
	right := ""
	if m.paused {
		right = "已暂停"
	} else if m.running {
		right = m.spinner.View() + " Running..."
	}
	style := lipgloss.NewStyle().Width(m.width).Padding(0, 1)
	gap := lipgloss.NewStyle().
		Width(max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)-2)).
		Render("")
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Left, left, gap, right))
}

func (m *chatModel) inputView() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(max(1, m.input.Width+2)).
		Render(m.input.View())
}

func (m *chatModel) updateViewportContent(content string) {
	oldYOffset := m.viewport.YOffset
	m.viewport.SetContent(content)
	if m.followTail {
		m.viewport.GotoBottom()
		return
	}
	m.viewport.SetYOffset(oldYOffset)
}

func (m *chatModel) resetMarkdownRenderer() {
	if m.width <= 0 {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.bubbleMaxContentWidth()),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m *chatModel) renderChat() string {
	var b strings.Builder
	for _, item := range m.feed {
		line := m.renderOneItem(item)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *chatModel) bubbleMaxContentWidth() int {
	if m.width <= 0 {
		return 72
	}
	return max(20, m.width-8)
}

func (m *chatModel) desiredContentWidth(s string) int {
	w := maxLineWidth(s)
	w = max(10, w)
	return min(m.bubbleMaxContentWidth(), w)
}

func (m *chatModel) wrapToWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func maxLineWidth(s string) int {
	s = strings.TrimRight(s, "\n")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	maxW := 0
	for _, line := range strings.Split(s, "\n") {
		if w := lipgloss.Width(strings.TrimRight(line, " ")); w > maxW {
			maxW = w
		}
	}
	return maxW
}

func (m *chatModel) renderOneItem(item feedItem) string {
	switch item.kind {
	case feedUser:
		return m.renderUser(item.body)
	case feedThought, feedFinal:
		return m.renderAgent(item.body, item.kind == feedFinal)
	case feedError:
		return m.renderBubble(item.body, lipgloss.Color("1"))
	case feedStatus:
		return m.renderBubble(item.body, lipgloss.Color("4"))
	default:
		return m.renderTool(item.body)
	}
}

func (m *chatModel) renderAgent(content string, final bool) string {
	md := content
	if m.renderer != nil && strings.TrimSpace(md) != "" {
		if rendered, err := m.renderer.Render(md); err == nil {
			md = strings.TrimRight(rendered, "\n")
		}
	}
	border := lipgloss.Color("63")
	if final {
		border = lipgloss.Color("2")
	}
	md = m.wrapToWidth(md, m.desiredContentWidth(md))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(md)
}

func (m *chatModel) renderUser(content string) string {
	content = m.wrapToWidth(content, m.desiredContentWidth(content))
	bubble := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(content)
	return lipgloss.NewStyle().Width(m.width).Align(lipgloss.Right).Render(bubble)
}

func (m *chatModel) renderTool(content string) string {
	body := content
	if strings.TrimSpace(body) == "" {
		body = "(无输出)"
	}
	body = m.wrapToWidth(body, m.desiredContentWidth(body))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Foreground(lipgloss.Color("245")).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render("TOOL\n" + body)
}

func (m *chatModel) renderBubble(content string, border lipgloss.Color) string {
	body := m.wrapToWidth(content, m.desiredContentWidth(content))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MaxWidth(max(20, m.width-4)).
		Render(body)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
