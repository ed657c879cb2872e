package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// queryChatsCmd 列出已分享的对话
var queryChatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "列出已分享的对话",
	Long:  `列出对象存储中的全部对话,按更新时间倒序。`,
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
		chats, err := st.chats.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list chats: %w", err)
		}

		if queryOutputType == "json" {
			data, _ := json.MarshalIndent(chats, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		rows := [][]string{}
		for _, chat := range chats {
			rows = append(rows, []string{
				chat.ID,
				strconv.Itoa(chat.MessageCount),
				chat.Preview,
				chat.CreatedAt.Local().Format(time.DateTime),
				chat.UpdatedAt.Local().Format(time.DateTime),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("ID", "Messages", "Preview", "Created", "Updated").
			Rows(rows...)

		fmt.Println(t)
		fmt.Println()
		logx.Info("Query completed, count %d", len(chats))

		return nil
	},
}

func init() {
	queryCmd.AddCommand(queryChatsCmd)
}
