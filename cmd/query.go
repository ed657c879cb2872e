package cmd

import (
	"github.com/spf13/cobra"
)

var queryOutputType string

// queryCmd 查询命令组
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "查询对话和用量数据",
	Long:  `查询已分享的对话列表和 LLM 用量统计。`,
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryOutputType, "output", "o", "table", "输出格式 (table/json)")
	rootCmd.AddCommand(queryCmd)
}
