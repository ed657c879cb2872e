package server

import (
	"errors"
	"net/http"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/F12-Syntex/plantuml-chatbot/internal/deviceinfo"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/store"
)

// DeleteLogsRequest 删除访问日志的请求,二选一
type DeleteLogsRequest struct {
	Timestamp string `json:"timestamp"`
	All       bool   `json:"all"`
}

// handleListChats 管理面板的对话列表
func (s *HTTPGinServer) handleListChats(c *gin.Context) {
	chats, err := s.chatStore.List(c.Request.Context())
	if err != nil {
		logx.Error("failed to list chats: %v", err)
		s.error(c, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	c.JSON(http.StatusOK, chats)
}

// handleGetAccessLogs 某对话的访问日志,新的在前
func (s *HTTPGinServer) handleGetAccessLogs(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		s.error(c, http.StatusBadRequest, "Chat ID is required")
		return
	}

	logs, err := s.logStore.ReadAll(c.Request.Context(), id)
	if err != nil {
		logx.Error("failed to read access logs for chat %s: %v", id, err)
		s.error(c, http.StatusInternalServerError, "Failed to read access logs")
		return
	}
	if logs == nil {
		logs = []model.AccessLogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

// handleDeleteChat 删除对话及其日志,删除动作本身先记入日志
func (s *HTTPGinServer) handleDeleteChat(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		s.error(c, http.StatusBadRequest, "Chat ID is required")
		return
	}

	// 删除动作同步落日志,日志对象删除之后不能再有写回
	entry := deviceinfo.Collect(c, model.ActionDeleted)
	if err := s.logStore.Append(c.Request.Context(), id, entry); err != nil {
		logx.Warn("failed to log deleted access for chat %s: %v", id, err)
	}

	if err := s.chatStore.Delete(c.Request.Context(), id); err != nil {
		logx.Error("failed to delete chat %s: %v", id, err)
		s.error(c, http.StatusInternalServerError, "Failed to delete chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chat deleted successfully"})
}

// handleDeleteAccessLogs 删除单条或全部访问日志
func (s *HTTPGinServer) handleDeleteAccessLogs(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		s.error(c, http.StatusBadRequest, "Chat ID is required")
		return
	}

	var req DeleteLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	switch {
	case req.All:
		logs, _ := s.logStore.ReadAll(c.Request.Context(), id)
		if err := s.logStore.DeleteAll(c.Request.Context(), id); err != nil {
			logx.Error("failed to delete access logs for chat %s: %v", id, err)
			s.error(c, http.StatusInternalServerError, "Failed to delete logs")
			return
		}
		// 清空本身也是一次删除动作
		s.logAccess(c, id, model.ActionDeleted)
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"message":      "All logs deleted successfully",
			"deletedCount": len(logs),
		})
	case req.Timestamp != "":
		err := s.logStore.DeleteOne(c.Request.Context(), id, req.Timestamp)
		if errors.Is(err, store.ErrNotFound) {
			s.error(c, http.StatusNotFound, "Log entry not found")
			return
		}
		if err != nil {
			logx.Error("failed to delete log entry for chat %s: %v", id, err)
			s.error(c, http.StatusInternalServerError, "Failed to delete log entry")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Log entry deleted successfully"})
	default:
		s.error(c, http.StatusBadRequest, "Either timestamp or all=true is required")
	}
}

// ==================== 辅助函数 ====================

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isOutOfRange(err error) bool {
	return errors.Is(err, store.ErrOutOfRange)
}
