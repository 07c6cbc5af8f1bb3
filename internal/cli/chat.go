package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wwwzy/redagent/internal/llm"
	"github.com/wwwzy/redagent/internal/logging"
	"github.com/wwwzy/redagent/internal/modes"
	"github.com/wwwzy/redagent/internal/storage"
	"github.com/wwwzy/redagent/internal/tools"
	"github.com/wwwzy/redagent/internal/tui"
	"github.com/wwwzy/redagent/internal/ui"
)

var (
	chatUI    string
	chatAgent string
	chatMode  string
	noStore   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式求解模式",
	Long: `进入控制台 REPL：选择 LLM 后端与会话模式后，直接描述
挑战目标，Agent 会逐步调用工具分析并给出最终答案。
执行过程中按 Ctrl+C 可暂停并补充指引。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		logger, err := logging.New(cfg.SessionLog, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("初始化会话日志失败: %w", err)
		}
		defer logger.Close()

		store := tools.NewSessionStore(cfg.Agent.HTTPTimeout)
		registry, err := tools.NewDefaultRegistry(store, cfg.Agent.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("注册工具失败: %w", err)
		}

		var db *storage.Storage
		if !noStore {
			db, err = storage.Open(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("打开存储失败: %w", err)
			}
			defer db.Close()
		}

		switch chatUI {
		case "console", "":
			display := ui.NewDisplayManager(os.Stdout, 0, cfg.Agent.Truncation)
			return ui.NewREPL(cfg, display, registry, logger, db).Run(ctx)
		case "tui":
			// TUI 不含后端选择步骤，启动前后端和模式必须就绪
			backend, err := llm.New(ctx, chatAgent, cfg)
			if err != nil {
				return err
			}
			mode, ok := modes.Get(chatMode)
			if !ok {
				return fmt.Errorf("未知模式: %s", chatMode)
			}
			chat := &tui.ChatUI{
				Backend:  backend,
				Registry: registry,
				Cfg:      cfg,
				Logger:   logger,
				Mode:     mode,
			}
			return chat.Run(ctx)
		default:
			return fmt.Errorf("未知 ui 类型: %s (支持: console, tui)", chatUI)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatUI, "ui", "console", "交互界面类型: console/tui")
	chatCmd.Flags().StringVar(&chatAgent, "agent", "ollama", "tui 模式下使用的后端")
	chatCmd.Flags().StringVar(&chatMode, "mode", "web-ctf", "tui 模式下使用的会话模式")
	chatCmd.Flags().BoolVar(&noStore, "no-store", false, "不把执行记录写入 SQLite")
}
