package server

import (
	"errors"
	"net/http"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/F12-Syntex/plantuml-chatbot/internal/llm"
)

// handleCompletions 流式对话转发
// 响应为 SSE,内容帧原样透传上游,流末尾附用量帧和 [DONE]
func (s *HTTPGinServer) handleCompletions(c *gin.Context) {
	var req llm.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		s.error(c, http.StatusBadRequest, "Messages array is required and must not be empty")
		return
	}

	if !s.config.LLM.Enabled || s.llmClient == nil {
		s.error(c, http.StatusServiceUnavailable, "LLM service is not enabled")
		return
	}

	frames, err := s.llmClient.StreamCompletion(c.Request.Context(), req)
	if err != nil {
		s.completionError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.error(c, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	for frame := range frames {
		if _, err := c.Writer.WriteString(frame); err != nil {
			// 客户端断开,丢弃剩余帧
			logx.Debug("client disconnected during stream: %v", err)
			return
		}
		flusher.Flush()
	}
}

// completionError 把建流前的失败映射为 HTTP 错误
func (s *HTTPGinServer) completionError(c *gin.Context, err error) {
	if errors.Is(err, llm.ErrAPIKeyMissing) {
		s.error(c, http.StatusInternalServerError, "API key not configured")
		return
	}

	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		c.JSON(upstream.StatusCode, Response{
			Code:    upstream.StatusCode,
			Message: upstream.Message,
			Data:    gin.H{"isImageError": upstream.IsImageError},
		})
		return
	}

	logx.Error("failed to start completion stream: %v", err)
	s.error(c, http.StatusBadGateway, "Failed to get response from upstream")
}

// handleListModels 上游模型目录,过滤为纯文本模型
func (s *HTTPGinServer) handleListModels(c *gin.Context) {
	models, err := s.llmClient.ListModels(c.Request.Context())
	if err != nil {
		s.upstreamProxyError(c, err, "Failed to fetch models")
		return
	}
	c.JSON(http.StatusOK, models)
}

// handleGetCredits 上游账户余额,原样透传
func (s *HTTPGinServer) handleGetCredits(c *gin.Context) {
	credits, err := s.llmClient.GetCredits(c.Request.Context())
	if err != nil {
		s.upstreamProxyError(c, err, "Failed to fetch credits")
		return
	}
	c.Data(http.StatusOK, "application/json", credits)
}

// upstreamProxyError 透传类接口的错误映射
func (s *HTTPGinServer) upstreamProxyError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, llm.ErrAPIKeyMissing) {
		s.error(c, http.StatusInternalServerError, "API key not configured")
		return
	}
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		s.error(c, upstream.StatusCode, upstream.Message)
		return
	}
	logx.Error("upstream proxy error: %v", err)
	s.error(c, http.StatusBadGateway, fallback)
}
