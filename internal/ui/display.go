// Package ui 提供终端交互层：面板化输出、命令解析与 REPL。
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	defaultFrameWidth = 100
	minFrameWidth     = 40

	// 截断阈值：参数值与观察文本分别适用
	paramTruncateLen  = 100
	resultTruncateLen = 1000
)

var (
	panelBase = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().Bold(true)

	thinkingBorder = lipgloss.Color("6")  // cyan
	toolBorder     = lipgloss.Color("3")  // yellow
	responseBorder = lipgloss.Color("2")  // green
	errorBorder    = lipgloss.Color("1")  // red
	statusBorder   = lipgloss.Color("4")  // blue
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

// DisplayManager 把循环事件渲染成带边框的面板。
// 实现 agent.Display。
type DisplayManager struct {
	mu         sync.Mutex
	out        io.Writer
	width      int
	truncation bool
}

func NewDisplayManager(out io.Writer, width int, truncation bool) *DisplayManager {
	if width <= 0 {
		width = defaultFrameWidth
	}
	if width < minFrameWidth {
		width = minFrameWidth
	}
	return &DisplayManager{out: out, width: width, truncation: truncation}
}

// SetTruncation 切换长文本截断。
func (d *DisplayManager) SetTruncation(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.truncation = enabled
}

func (d *DisplayManager) Truncation() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.truncation
}

func (d *DisplayManager) panel(title string, body string, border lipgloss.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	style := panelBase.
		BorderForeground(border).
		Width(d.width - 2)
	content := titleStyle.Foreground(border).Render(title) + "\n\n" + body
	fmt.Fprintln(d.out, style.Render(content))
}

func (d *DisplayManager) PrintThinking(thought string, step int) {
	title := "🧠 Agent 思考"
	if step > 0 {
		title = fmt.Sprintf("%s (Step %d)", title, step)
	}
	d.panel(title, thought, thinkingBorder)
}

func (d *DisplayManager) PrintToolCall(name string, input map[string]any, step int) {
	title := "🔧 工具调用"
	if step > 0 {
		title = fmt.Sprintf("%s (Step %d)", title, step)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Calling Tool: %s\n\nParameters:\n", name)
	if len(input) == 0 {
		b.WriteString("  (no parameters)\n")
	} else {
		keys := make([]string, 0, len(input))
		for k := range input {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := fmt.Sprint(input[k])
			if d.Truncation() && len(value) > paramTruncateLen {
				value = value[:paramTruncateLen] + "..."
			}
			fmt.Fprintf(&b, "  • %s: %s\n", k, value)
		}
	}
	d.panel(title, strings.TrimRight(b.String(), "\n"), toolBorder)
}

func (d *DisplayManager) PrintToolResponse(name string, result string, step int) {
	title := "📊 工具响应"
	if step > 0 {
		title = fmt.Sprintf("%s (Step %d)", title, step)
	}

	shown := result
	if d.Truncation() && len(result) > resultTruncateLen {
		shown = result[:resultTruncateLen] +
			dimStyle.Render(fmt.Sprintf("\n\n... (truncated, total length: %d chars)", len(result)))
	}
	body := fmt.Sprintf("Tool: %s\nStatus: ✓ Executed successfully\n\nOutput:\n%s", name, shown)
	d.panel(title, body, responseBorder)
}

func (d *DisplayManager) PrintFinalAnswer(answer string) {
	d.panel("🎯 最终答案", answer, responseBorder)
}

func (d *DisplayManager) PrintError(errMsg string, suggestion string) {
	body := "Error:\n" + errMsg
	if suggestion != "" {
		body += "\n\nSuggestion:\n" + suggestion
	}
	d.panel("❌ 错误", body, errorBorder)
}

func (d *DisplayManager) PrintStatus(lines []string, title string) {
	if title == "" {
		title = "状态"
	}
	d.panel(title, strings.Join(lines, "\n"), statusBorder)
}

func (d *DisplayManager) PrintSeparator() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, dimStyle.Render(strings.Repeat("─", d.width)))
}

func (d *DisplayManager) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}
