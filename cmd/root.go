package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/config"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
	"github.com/F12-Syntex/plantuml-chatbot/internal/store"
)

var cfgFile string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "plantuml-chatbot",
	Short: "PlantUML 对话助手服务",
	Long:  `面向 PlantUML 绘图的 LLM 对话转发服务,支持对话分享、访问日志和用量统计。`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
}

// loadConfig 加载配置
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// stores 一组共享同一对象存储的持久化组件
type stores struct {
	chats *store.ChatStore
	logs  *store.AccessLogStore
	usage *store.UsageLedger
}

// buildStores 按配置组装对象存储、解析器和各存储组件
func buildStores(cfg *config.Config) (*stores, error) {
	backend, err := blob.New(&cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	r := resolver.New(backend, cfg.Blob.PublicBaseURL)

	return &stores{
		chats: store.NewChatStore(backend, r),
		logs:  store.NewAccessLogStore(backend, r),
		usage: store.NewUsageLedger(backend, r),
	}, nil
}
