package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/google/uuid"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
)

// ChatStore 对话文档存储
//
// 文档以 chats/{id}.json 整体读写,没有部分更新,后端也不提供
// 比较交换原语,并发写以后写者为准。读路径上的存储故障一律降级为
// "不存在",可用性优先于暴露瞬时故障。
type ChatStore struct {
	store    blob.Store
	resolver *resolver.Resolver
}

// NewChatStore 创建对话存储
func NewChatStore(s blob.Store, r *resolver.Resolver) *ChatStore {
	return &ChatStore{store: s, resolver: r}
}

// newChatID 生成 16 位小写十六进制对话 ID
// UUID 去掉连字符后取前 16 位,64 bit 以上的随机空间,碰撞概率可忽略
func newChatID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Create 创建对话并持久化,返回完整文档
func (s *ChatStore) Create(ctx context.Context, messages []model.ChatMessage) (*model.Chat, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages must not be empty")
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:        newChatID(),
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Save(ctx, chat); err != nil {
		return nil, err
	}

	logx.Info("created chat %s with %d messages", chat.ID, len(messages))
	return chat, nil
}

// Get 按 ID 读取对话
// 不存在或存储故障都返回 (nil, nil),存储故障只记录日志不上抛
func (s *ChatStore) Get(ctx context.Context, id string) (*model.Chat, error) {
	data, err := s.resolver.Fetch(ctx, chatPath(id))
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			logx.Warn("failed to fetch chat %s, treating as absent: %v", id, err)
		}
		return nil, nil
	}

	var chat model.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		logx.Warn("failed to decode chat %s, treating as absent: %v", id, err)
		return nil, nil
	}
	return &chat, nil
}

// Save 整体写回对话文档,刷新 updatedAt
func (s *ChatStore) Save(ctx context.Context, chat *model.Chat) error {
	chat.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to encode chat %s: %w", chat.ID, err)
	}

	p := chatPath(chat.ID)
	result, err := s.store.Put(ctx, p, data, blob.PutOptions{
		ContentType:    "application/json",
		Public:         true,
		AllowOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("failed to save chat %s: %w", chat.ID, err)
	}

	s.resolver.Learn(p, result.URL)
	return nil
}

// DeleteMessage 删除指定下标的消息,后续消息下标前移
func (s *ChatStore) DeleteMessage(ctx context.Context, id string, index int) (*model.Chat, error) {
	chat, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrNotFound
	}
	if index < 0 || index >= len(chat.Messages) {
		return nil, ErrOutOfRange
	}

	chat.Messages = append(chat.Messages[:index], chat.Messages[index+1:]...)

	if err := s.Save(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// Delete 删除对话文档及其访问日志,尽力而为,对象缺失不算错误
func (s *ChatStore) Delete(ctx context.Context, id string) error {
	for _, p := range []string{chatPath(id), logPath(id)} {
		objectURL, err := s.resolver.Resolve(ctx, p)
		if err != nil {
			if !errors.Is(err, blob.ErrNotFound) {
				logx.Warn("failed to resolve %s for deletion: %v", p, err)
			}
			continue
		}

		if err := s.store.Delete(ctx, objectURL); err != nil && !errors.Is(err, blob.ErrNotFound) {
			logx.Warn("failed to delete %s: %v", p, err)
		}
		s.resolver.Invalidate(p)
	}

	logx.Info("deleted chat %s", id)
	return nil
}

// List 枚举所有对话,按更新时间倒序
//
// 底层 list 是最终一致的,结果对管理面板够用,不能当作
// 正确性敏感的全量枚举。单个对话读取失败时降级为仅含
// 枚举元数据的占位条目。
func (s *ChatStore) List(ctx context.Context) ([]model.ChatSummary, error) {
	infos, err := s.store.List(ctx, chatPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	summaries := make([]model.ChatSummary, 0, len(infos))
	for _, info := range infos {
		name := path.Base(info.Pathname)
		if strings.HasSuffix(name, logSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, chatSuffix)
		if id == "" || id == name {
			continue
		}

		chat, err := s.Get(ctx, id)
		if err != nil || chat == nil {
			// 读不到就用枚举元数据兜底
			summaries = append(summaries, model.ChatSummary{
				ID:        id,
				CreatedAt: info.UploadedAt,
				UpdatedAt: info.UploadedAt,
			})
			continue
		}

		summaries = append(summaries, model.ChatSummary{
			ID:           chat.ID,
			MessageCount: len(chat.Messages),
			Preview:      chatPreview(chat),
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// chatPreview 取第一条用户消息的开头作为预览
func chatPreview(chat *model.Chat) string {
	for _, msg := range chat.Messages {
		if msg.Role != model.RoleUser {
			continue
		}
		text := msg.Content.PlainText()
		if len(text) > 80 {
			return text[:80] + "..."
		}
		return text
	}
	return ""
}
