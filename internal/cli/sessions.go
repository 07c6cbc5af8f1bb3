package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wwwzy/redagent/internal/storage"
)

var (
	sessionsLimit   int
	sessionsAgent   string
	sessionsOutcome string
	pruneDays       int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "查看与清理历史执行记录",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出最近的执行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer db.Close()

		runs, err := db.QueryRuns(ctx, storage.RunQuery{
			Agent:   sessionsAgent,
			Outcome: sessionsOutcome,
			Limit:   sessionsLimit,
			Desc:    true,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("暂无执行记录。")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tAGENT\tMODE\tOUTCOME\tSTEPS\tOBJECTIVE")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Agent,
				r.Mode,
				r.Outcome,
				r.StepCount,
				truncateText(r.Objective, 60),
			)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "查看一次执行的完整步骤",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的 run id: %s", args[0])
		}

		ctx := context.Background()
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer db.Close()

		run, err := db.GetRun(ctx, id)
		if err != nil {
			return err
		}
		steps, err := db.GetRunSteps(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("Run #%d  [%s]\n", run.ID, run.Outcome)
		fmt.Printf("Objective: %s\n", run.Objective)
		fmt.Printf("Agent: %s  Mode: %s  Steps: %d\n", run.Agent, run.Mode, run.StepCount)
		fmt.Printf("Started: %s  Duration: %s\n\n",
			run.StartedAt.Local().Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

		for _, s := range steps {
			fmt.Printf("--- Step %d ---\n", s.Ordinal)
			if s.Thought != "" {
				fmt.Printf("Thought: %s\n", s.Thought)
			}
			if s.IsFinal {
				fmt.Printf("Final Answer: %s\n", s.FinalAnswer)
				continue
			}
			fmt.Printf("Action: %s\nAction Input: %s\n", s.Action, s.InputJSON)
			fmt.Printf("Observation: %s\n", truncateText(s.Observation, 500))
		}

		if run.Answer != "" {
			fmt.Printf("\nAnswer: %s\n", run.Answer)
		}
		if run.ErrorDetail != "" {
			fmt.Printf("\nError: %s\n", run.ErrorDetail)
		}
		return nil
	},
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "删除过期的执行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		defer db.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -pruneDays)
		n, err := db.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("已删除 %d 条执行记录（早于 %s）。\n", n, cutoff.Local().Format("2006-01-02"))
		return nil
	},
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsPruneCmd)

	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "返回条数上限")
	sessionsListCmd.Flags().StringVar(&sessionsAgent, "agent", "", "按后端过滤")
	sessionsListCmd.Flags().StringVar(&sessionsOutcome, "outcome", "", "按结局过滤 (succeeded/failed/stuck/exhausted)")
	sessionsPruneCmd.Flags().IntVar(&pruneDays, "days", 30, "保留最近 N 天")
}
