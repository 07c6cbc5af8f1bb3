package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wwwzy/redagent/internal/modes"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "列出内置练习题目",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("\n🎯 内置 CTF 练习题目")
		fmt.Println()
		for _, c := range modes.ExampleChallenges {
			fmt.Printf("📌 %s\n", c.Name)
			fmt.Printf("   Description: %s\n", c.Description)
			if c.Challenge != "" {
				fmt.Printf("   Challenge: %s\n", c.Challenge)
			}
			if c.URL != "" {
				fmt.Printf("   URL: %s\n", c.URL)
			}
			fmt.Printf("   Hint: %s\n", c.Hint)
			fmt.Printf("   Solution: %s\n\n", c.Solution)
		}
		fmt.Println("💡 使用方式：")
		fmt.Println("1. 启动交互模式：redagent chat")
		fmt.Println("2. 选择后端：/agent gemini（或 /agent ollama）")
		fmt.Println("3. 选择模式：/mode web-ctf")
		fmt.Println("4. 把题面直接交给 Agent，例如：")
		fmt.Println("   Decode this base64: RkxBR3tiYXNlNjRfaXNfZWFzeX0=")
	},
}

func init() {
	rootCmd.AddCommand(examplesCmd)
}
