// Package logging 提供基于 zap 的会话日志。日志面向事后排障，
// 记录提示词、补全、工具执行与终局，不承担终端展示职责。
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SessionLogger 把一次会话内的关键事件写入结构化日志文件。
type SessionLogger struct {
	log *zap.Logger
}

// New 创建写入 path 的会话日志器。path 为空时返回空实现。
func New(path string, level string) (*SessionLogger, error) {
	if path == "" {
		return NewNop(), nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &SessionLogger{log: log}, nil
}

// NewNop 返回丢弃所有事件的日志器，测试与未配置场景使用。
func NewNop() *SessionLogger {
	return &SessionLogger{log: zap.NewNop()}
}

func (l *SessionLogger) SessionStarted(sessionID string) {
	l.log.Info("session_started", zap.String("session_id", sessionID))
}

func (l *SessionLogger) AgentSelected(name string, model string) {
	l.log.Info("agent_selected", zap.String("agent", name), zap.String("model", model))
}

func (l *SessionLogger) ModeSelected(name string) {
	l.log.Info("mode_selected", zap.String("mode", name))
}

func (l *SessionLogger) RunStarted(sessionID string, objective string, agent string, mode string) {
	l.log.Info("run_started",
		zap.String("session_id", sessionID),
		zap.String("objective", objective),
		zap.String("agent", agent),
		zap.String("mode", mode),
	)
}

func (l *SessionLogger) LLMPrompt(step int, model string, prompt string) {
	l.log.Debug("llm_prompt",
		zap.Int("step", step),
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)),
		zap.String("prompt", prompt),
	)
}

func (l *SessionLogger) LLMResponse(step int, response string) {
	l.log.Debug("llm_response",
		zap.Int("step", step),
		zap.Int("response_len", len(response)),
		zap.String("response", response),
	)
}

func (l *SessionLogger) ToolExecuted(tool string, duration time.Duration, success bool) {
	l.log.Info("tool_executed",
		zap.String("tool", tool),
		zap.Duration("duration", duration),
		zap.Bool("success", success),
	)
}

func (l *SessionLogger) RunPaused(reason string) {
	l.log.Info("run_paused", zap.String("reason", reason))
}

func (l *SessionLogger) RunResumed(hasNote bool) {
	l.log.Info("run_resumed", zap.Bool("guidance_injected", hasNote))
}

func (l *SessionLogger) RunFinished(success bool, detail string, steps int) {
	l.log.Info("run_finished",
		zap.Bool("success", success),
		zap.String("detail", detail),
		zap.Int("steps", steps),
	)
}

func (l *SessionLogger) Error(msg string, err error) {
	l.log.Error(msg, zap.Error(err))
}

// Close 刷出缓冲。进程退出前调用。
func (l *SessionLogger) Close() {
	_ = l.log.Sync()
}
