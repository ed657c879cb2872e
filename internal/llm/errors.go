package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAPIKeyMissing 上游 API Key 未配置
var ErrAPIKeyMissing = errors.New("llm: api key not configured")

// UpstreamError 上游在建立流之前返回的错误
type UpstreamError struct {
	StatusCode   int
	Message      string
	IsImageError bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm: upstream error (status %d): %s", e.StatusCode, e.Message)
}

// imageErrorKeywords 图片相关错误的特征关键词
// 上游拒绝多模态输入时的报错措辞各家不一,按关键词归类,
// 前端据此提示用户移除图片重试
var imageErrorKeywords = []string{
	"image",
	"vision",
	"multimodal",
	"does not support",
	"invalid content",
	"content type",
}

// IsImageRelatedError 判断错误消息是否与图片输入相关
func IsImageRelatedError(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range imageErrorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
