package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
)

func newTestLogStore() *AccessLogStore {
	backend := blob.NewMemoryStore()
	return NewAccessLogStore(backend, resolver.New(backend, ""))
}

func TestAppendStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestLogStore()

	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Action: model.ActionCreated}))

	logs, err := s.ReadAll(ctx, "chat1")
	require.NoError(t, err)
	require.Len(t, logs, 1)

	_, err = time.Parse(time.RFC3339Nano, logs[0].Timestamp)
	assert.NoError(t, err)

	// 毫秒定宽,保证字符串比较排序与时间顺序一致
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, logs[0].Timestamp)
}

func TestStampedTimestampsSortChronologically(t *testing.T) {
	before := time.Date(2026, 9, 1, 10, 0, 0, 100_000_000, time.UTC)
	after := time.Date(2026, 9, 1, 10, 0, 0, 150_000_000, time.UTC)

	a := before.Format(logTimeLayout)
	b := after.Format(logTimeLayout)
	assert.True(t, a < b)
}

func TestAppendDedupesOnTimestampAndAction(t *testing.T) {
	ctx := context.Background()
	s := newTestLogStore()

	ts := "2026-09-01T10:00:00.000000000Z"
	entry := model.AccessLogEntry{Timestamp: ts, Action: model.ActionViewed, IP: "1.2.3.4"}

	require.NoError(t, s.Append(ctx, "chat1", entry))
	require.NoError(t, s.Append(ctx, "chat1", entry))
	// 同一时间戳不同动作不算重复
	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: ts, Action: model.ActionUpdated}))

	logs, err := s.ReadAll(ctx, "chat1")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestReadAllSortsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestLogStore()

	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: "2026-09-01T10:00:00Z", Action: model.ActionCreated}))
	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: "2026-09-01T12:00:00Z", Action: model.ActionViewed}))
	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: "2026-09-01T11:00:00Z", Action: model.ActionViewed}))

	logs, err := s.ReadAll(ctx, "chat1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "2026-09-01T12:00:00Z", logs[0].Timestamp)
	assert.Equal(t, "2026-09-01T10:00:00Z", logs[2].Timestamp)
}

func TestReadAllAbsentChatIsEmpty(t *testing.T) {
	s := newTestLogStore()
	logs, err := s.ReadAll(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDeleteOne(t *testing.T) {
	ctx := context.Background()
	s := newTestLogStore()

	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: "2026-09-01T10:00:00Z", Action: model.ActionCreated}))
	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Timestamp: "2026-09-01T11:00:00Z", Action: model.ActionViewed}))

	require.NoError(t, s.DeleteOne(ctx, "chat1", "2026-09-01T10:00:00Z"))

	logs, err := s.ReadAll(ctx, "chat1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2026-09-01T11:00:00Z", logs[0].Timestamp)

	// 没有条目被移除时返回 NotFound
	assert.ErrorIs(t, s.DeleteOne(ctx, "chat1", "2026-09-01T10:00:00Z"), ErrNotFound)
}

func TestDeleteAllWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	s := newTestLogStore()

	require.NoError(t, s.Append(ctx, "chat1", model.AccessLogEntry{Action: model.ActionCreated}))
	require.NoError(t, s.DeleteAll(ctx, "chat1"))

	logs, err := s.ReadAll(ctx, "chat1")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// 清空后对象仍然存在,内容为空数组
	data, err := s.resolver.FetchFresh(ctx, logPath("chat1"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
