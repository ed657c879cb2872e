package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/spf13/cobra"

	"github.com/F12-Syntex/plantuml-chatbot/internal/llm"
	"github.com/F12-Syntex/plantuml-chatbot/internal/server"
)

// serverCmd 启动 HTTP 服务
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 HTTP 服务",
	Long:  `启动对话转发和分享服务的 HTTP 服务器。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := buildStores(cfg)
		if err != nil {
			return err
		}

		var llmClient *llm.Client
		if cfg.LLM.Enabled {
			llmClient = llm.NewClient(&cfg.LLM, st.usage)
		} else {
			logx.Warn("LLM is disabled, chat relay endpoints will return 503")
		}

		srv := server.NewHTTPGinServer(cfg, llmClient, st.chats, st.logs, st.usage)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			logx.Info("Received signal %s, shutting down", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
