package server

import (
	"net/http"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"
)

// handleUsageStats 用量台账汇总
func (s *HTTPGinServer) handleUsageStats(c *gin.Context) {
	summary, err := s.usageLedger.Summarize(c.Request.Context())
	if err != nil {
		logx.Error("failed to summarize usage: %v", err)
		s.error(c, http.StatusInternalServerError, "Failed to summarize usage")
		return
	}
	c.JSON(http.StatusOK, summary)
}
