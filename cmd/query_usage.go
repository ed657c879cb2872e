package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// queryUsageCmd 查询 LLM 用量统计
var queryUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "查询 LLM 用量统计",
	Long:  `汇总用量台账,输出总成本和最近的调用记录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := buildStores(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		summary, err := st.usage.Summarize(ctx)
		if err != nil {
			return fmt.Errorf("failed to summarize usage: %w", err)
		}

		if queryOutputType == "json" {
			data, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Total cost:              $%.4f\n", summary.TotalCost)
		fmt.Printf("Total messages:          %d\n", summary.TotalMessages)
		fmt.Printf("Total prompt tokens:     %d\n", summary.TotalPromptTokens)
		fmt.Printf("Total completion tokens: %d\n", summary.TotalCompletionTokens)
		fmt.Println()

		rows := [][]string{}
		for _, r := range summary.RecentUsage {
			rows = append(rows, []string{
				time.UnixMilli(r.Timestamp).Local().Format(time.DateTime),
				r.Model,
				strconv.Itoa(r.PromptTokens),
				strconv.Itoa(r.CompletionTokens),
				strconv.Itoa(r.TotalTokens),
				fmt.Sprintf("$%.6f", r.Cost),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("Time", "Model", "Prompt", "Completion", "Total", "Cost").
			Rows(rows...)

		fmt.Println(t)

		return nil
	},
}

func init() {
	queryCmd.AddCommand(queryUsageCmd)
}
