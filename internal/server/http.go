package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/F12-Syntex/plantuml-chatbot/internal/config"
	"github.com/F12-Syntex/plantuml-chatbot/internal/llm"
	"github.com/F12-Syntex/plantuml-chatbot/internal/store"
	"github.com/F12-Syntex/plantuml-chatbot/web"
)

// HTTPGinServer 基于 Gin 的 HTTP 服务器
type HTTPGinServer struct {
	config *config.Config
	engine *gin.Engine
	server *http.Server

	llmClient   *llm.Client
	chatStore   *store.ChatStore
	logStore    *store.AccessLogStore
	usageLedger *store.UsageLedger
}

// NewHTTPGinServer 创建基于 Gin 的 HTTP 服务器
func NewHTTPGinServer(cfg *config.Config, llmClient *llm.Client, chatStore *store.ChatStore, logStore *store.AccessLogStore, usageLedger *store.UsageLedger) *HTTPGinServer {
	// 设置 Gin 模式
	if cfg.Server.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPGinServer{
		config:      cfg,
		engine:      gin.New(),
		llmClient:   llmClient,
		chatStore:   chatStore,
		logStore:    logStore,
		usageLedger: usageLedger,
	}

	s.registerMiddlewares()
	s.registerRoutes()

	return s
}

// registerMiddlewares 注册中间件
func (s *HTTPGinServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(s.corsMiddleware())
}

// loggingMiddleware 自定义日志中间件
func (s *HTTPGinServer) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logx.Info("HTTP request, method %s, path %s, status %d, duration %s",
			method, path, status, duration)
	}
}

// corsMiddleware CORS 中间件
func (s *HTTPGinServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Timezone")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// registerRoutes 注册路由
func (s *HTTPGinServer) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		// LLM 相关
		api.POST("/chat", s.handleCompletions)
		api.GET("/models", s.handleListModels)
		api.GET("/credits", s.handleGetCredits)

		// 对话分享
		chat := api.Group("/chat")
		{
			chat.POST("/share", s.handleShareChat)
			chat.GET("/:id", s.handleGetChat)
			chat.PATCH("/:id", s.handlePatchChat)
		}

		// 访问日志和管理面板
		log := api.Group("/log")
		{
			log.GET("/list", s.handleListChats)
			log.GET("/:id", s.handleGetAccessLogs)
			log.DELETE("/:id", s.handleDeleteChat)
			log.DELETE("/:id/logs", s.handleDeleteAccessLogs)
		}

		api.GET("/usage-stats", s.handleUsageStats)
	}

	s.registerStatic()
}

// registerStatic 非 API 路径回落到内嵌的前端页面
func (s *HTTPGinServer) registerStatic() {
	fileSystem, err := web.GetFileSystem()
	if err != nil {
		logx.Warn("embedded frontend unavailable: %v", err)
		return
	}

	fileServer := http.FileServer(fileSystem)
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			s.error(c, http.StatusNotFound, "Not Found")
			return
		}
		// 前端路由走 index.html
		if _, err := fileSystem.Open(strings.TrimPrefix(c.Request.URL.Path, "/")); err != nil {
			c.Request.URL.Path = "/"
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	})
}

// Start 启动 HTTP 服务器
func (s *HTTPGinServer) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.config.Server.HTTP.Port)

	// SSE 长连接不能设置 WriteTimeout,由 LLM 客户端的超时兜底
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
	}

	logx.Info("🛜 Starting HTTP Server (Gin), Addr %s", addr)
	return s.server.ListenAndServe()
}

// Stop 停止 HTTP 服务器
func (s *HTTPGinServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// success 返回成功响应
func (s *HTTPGinServer) success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "Success",
		Data:    data,
	})
}

// error 返回错误响应
func (s *HTTPGinServer) error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// ==================== 健康检查 ====================

func (s *HTTPGinServer) handleHealth(c *gin.Context) {
	s.success(c, gin.H{
		"status": "healthy",
	})
}
