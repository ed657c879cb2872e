package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
)

// logTimeLayout 固定三位毫秒,字典序即时间序
const logTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// AccessLogStore 对话访问日志存储
//
// 日志整体存于 chats/{id}_logs.json,追加走读改写:
// 每次追加前绕过缓存重读最新版本,合并后按 (timestamp, action)
// 去重再整体写回。并发追加仍可能互相覆盖,去重把重试和
// 多实例竞争产生的重复压到最低,丢失更新窗口靠 FetchFresh 压缩。
type AccessLogStore struct {
	store    blob.Store
	resolver *resolver.Resolver
}

// NewAccessLogStore 创建访问日志存储
func NewAccessLogStore(s blob.Store, r *resolver.Resolver) *AccessLogStore {
	return &AccessLogStore{store: s, resolver: r}
}

// Append 追加一条访问日志
// entry.Timestamp 为空时盖当前时间戳
func (s *AccessLogStore) Append(ctx context.Context, chatID string, entry model.AccessLogEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(logTimeLayout)
	}

	entries := s.read(ctx, chatID, true)
	entries = append(entries, entry)
	entries = dedupeEntries(entries)

	if err := s.write(ctx, chatID, entries); err != nil {
		return err
	}

	logx.Debug("appended %s log for chat %s", entry.Action, chatID)
	return nil
}

// ReadAll 读取某对话的全部访问日志,按时间倒序
func (s *AccessLogStore) ReadAll(ctx context.Context, chatID string) ([]model.AccessLogEntry, error) {
	entries := s.read(ctx, chatID, false)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	return entries, nil
}

// DeleteOne 按时间戳删除单条日志
// 没有任何条目被移除时返回 ErrNotFound
func (s *AccessLogStore) DeleteOne(ctx context.Context, chatID, timestamp string) error {
	entries := s.read(ctx, chatID, true)

	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp != timestamp {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return ErrNotFound
	}

	return s.write(ctx, chatID, kept)
}

// DeleteAll 清空某对话的访问日志,写回空数组而非删除对象
func (s *AccessLogStore) DeleteAll(ctx context.Context, chatID string) error {
	return s.write(ctx, chatID, []model.AccessLogEntry{})
}

// read 读取日志数组
// fresh 为 true 时走权威查询,用于读改写;读失败一律降级为空
func (s *AccessLogStore) read(ctx context.Context, chatID string, fresh bool) []model.AccessLogEntry {
	p := logPath(chatID)

	var data []byte
	var err error
	if fresh {
		data, err = s.resolver.FetchFresh(ctx, p)
	} else {
		data, err = s.resolver.Fetch(ctx, p)
	}
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			logx.Warn("failed to read access logs for chat %s: %v", chatID, err)
		}
		return nil
	}

	var entries []model.AccessLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logx.Warn("failed to decode access logs for chat %s: %v", chatID, err)
		return nil
	}
	return entries
}

// write 整体写回日志数组
func (s *AccessLogStore) write(ctx context.Context, chatID string, entries []model.AccessLogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode access logs for chat %s: %w", chatID, err)
	}

	p := logPath(chatID)
	result, err := s.store.Put(ctx, p, data, blob.PutOptions{
		ContentType:    "application/json",
		Public:         true,
		AllowOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("failed to save access logs for chat %s: %w", chatID, err)
	}

	s.resolver.Learn(p, result.URL)
	return nil
}

// dedupeEntries 按 (timestamp, action) 去重,保留首次出现的条目
func dedupeEntries(entries []model.AccessLogEntry) []model.AccessLogEntry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := e.Timestamp + "|" + e.Action
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
