package server

import (
	"context"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/F12-Syntex/plantuml-chatbot/internal/deviceinfo"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
)

// ShareRequest 创建分享对话的请求
type ShareRequest struct {
	Messages []model.ChatMessage `json:"messages"`
}

// PatchChatRequest 删除对话中某条消息的请求
type PatchChatRequest struct {
	MessageIndex *int `json:"messageIndex"`
}

// handleShareChat 创建可分享的对话
func (s *HTTPGinServer) handleShareChat(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		s.error(c, http.StatusBadRequest, "Messages array is required and must not be empty")
		return
	}

	chat, err := s.chatStore.Create(c.Request.Context(), req.Messages)
	if err != nil {
		logx.Error("failed to create chat: %v", err)
		s.error(c, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	s.logAccess(c, chat.ID, model.ActionCreated)

	c.JSON(http.StatusOK, gin.H{"id": chat.ID})
}

// handleGetChat 读取分享的对话
// 命中时刷新 updatedAt 并记一条 viewed 日志
func (s *HTTPGinServer) handleGetChat(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		s.error(c, http.StatusBadRequest, "Chat ID is required")
		return
	}

	chat, err := s.chatStore.Get(c.Request.Context(), id)
	if err != nil {
		logx.Error("failed to get chat %s: %v", id, err)
		s.error(c, http.StatusInternalServerError, "Failed to get chat")
		return
	}
	if chat == nil {
		s.error(c, http.StatusNotFound, "Chat not found")
		return
	}

	if err := s.chatStore.Save(c.Request.Context(), chat); err != nil {
		logx.Warn("failed to touch chat %s: %v", id, err)
	}
	s.logAccess(c, id, model.ActionViewed)

	c.JSON(http.StatusOK, chat)
}

// handlePatchChat 删除对话中指定下标的消息
func (s *HTTPGinServer) handlePatchChat(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		s.error(c, http.StatusBadRequest, "Chat ID is required")
		return
	}

	var req PatchChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MessageIndex == nil || *req.MessageIndex < 0 {
		s.error(c, http.StatusBadRequest, "Valid messageIndex is required")
		return
	}

	chat, err := s.chatStore.DeleteMessage(c.Request.Context(), id, *req.MessageIndex)
	switch {
	case err == nil:
	case isNotFound(err):
		s.error(c, http.StatusNotFound, "Chat not found")
		return
	case isOutOfRange(err):
		s.error(c, http.StatusBadRequest, "Message index out of bounds")
		return
	default:
		logx.Error("failed to patch chat %s: %v", id, err)
		s.error(c, http.StatusInternalServerError, "Failed to update chat")
		return
	}

	s.logAccess(c, id, model.ActionUpdated)

	c.JSON(http.StatusOK, chat)
}

// logAccess 采集请求属性并异步追加访问日志
// 日志失败不影响主流程,写入不随请求上下文取消
func (s *HTTPGinServer) logAccess(c *gin.Context, chatID, action string) {
	entry := deviceinfo.Collect(c, action)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.logStore.Append(ctx, chatID, entry); err != nil {
			logx.Warn("failed to log %s access for chat %s: %v", action, chatID, err)
		}
	}()
}
