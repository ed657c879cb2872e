package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Chat 对话文档,以 chats/{id}.json 的形式整体存储在对象存储中
type Chat struct {
	ID        string        `json:"id"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent 消息内容,兼容纯文本和多模态分段两种形式
// 纯文本时序列化为字符串,分段时序列化为数组,与前端的消息格式保持一致
type MessageContent struct {
	Text  string
	Parts []MessagePart
}

// MessagePart 多模态内容分段
type MessagePart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef 图片引用
type ImageRef struct {
	URL string `json:"url"`
}

// 分段类型
const (
	PartTypeText  = "text"
	PartTypeImage = "image_url"
)

// PlainContent 构造纯文本内容
func PlainContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// IsPlain 是否为纯文本内容
func (c MessageContent) IsPlain() bool {
	return c.Parts == nil
}

// PlainText 提取所有文本段,多段之间以换行连接
func (c MessageContent) PlainText() string {
	if c.IsPlain() {
		return c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if part.Type == PartTypeText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// MarshalJSON 实现 json.Marshaler
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsPlain() {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Parts = nil
		return nil
	}

	var parts []MessagePart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("message content is neither string nor parts: %w", err)
	}
	c.Text = ""
	c.Parts = parts
	return nil
}

// ChatSummary 对话列表条目,供管理面板展示
type ChatSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
