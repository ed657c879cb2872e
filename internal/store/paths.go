package store

import "errors"

// 对象路径约定,与原部署的 blob 布局保持一致
const (
	chatPrefix    = "chats/"
	chatSuffix    = ".json"
	logSuffix     = "_logs.json"
	usageStatsKey = "usage/usage-stats.json"
)

var (
	// ErrNotFound 对话或日志条目不存在
	ErrNotFound = errors.New("store: not found")
	// ErrOutOfRange 消息下标越界
	ErrOutOfRange = errors.New("store: message index out of range")
)

// chatPath 对话文档的对象路径
func chatPath(id string) string {
	return chatPrefix + id + chatSuffix
}

// logPath 对话访问日志的对象路径
func logPath(id string) string {
	return chatPrefix + id + logSuffix
}
