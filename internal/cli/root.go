package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wwwzy/redagent/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd 是没有子命令时调用的基础命令
var rootCmd = &cobra.Command{
	Use:   "redagent",
	Short: "RedAgent 是一个面向 Web CTF 的 AI 渗透助手",
	Long: `RedAgent 以 ReAct 循环驱动 LLM 后端，调用内置的
HTTP 与编解码工具，逐步分析并求解 Web CTF 挑战。`,
}

// Execute 将所有子命令添加到根命令并适当设置标志。
// 这由 main.main() 调用。它只需要对 rootCmd 调用一次。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件（默认按 ./config.yaml、$HOME/.redagent/config.yaml 搜索）")
}

// initConfig 读取配置文件和环境变量（如果已设置）。
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
}
