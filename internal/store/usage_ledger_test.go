package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
)

func newTestLedger() (*UsageLedger, blob.Store) {
	backend := blob.NewMemoryStore()
	return NewUsageLedger(backend, resolver.New(backend, "")), backend
}

func usageAt(ts int64, tokens int) model.UsageRecord {
	return model.UsageRecord{
		Timestamp:        ts,
		Model:            "openai/gpt-4o-mini",
		PromptTokens:     tokens,
		CompletionTokens: tokens,
		TotalTokens:      tokens * 2,
		Cost:             0.001,
	}
}

func TestRecordAndSummarize(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	require.NoError(t, l.Record(ctx, usageAt(1, 10)))
	require.NoError(t, l.Record(ctx, usageAt(2, 20)))

	summary, err := l.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalMessages)
	assert.Equal(t, 30, summary.TotalPromptTokens)
	assert.Equal(t, 30, summary.TotalCompletionTokens)
	assert.InDelta(t, 0.002, summary.TotalCost, 1e-9)

	// 最近记录新的在前
	require.Len(t, summary.RecentUsage, 2)
	assert.Equal(t, int64(2), summary.RecentUsage[0].Timestamp)
	assert.Equal(t, int64(1), summary.RecentUsage[1].Timestamp)
}

func TestRecordEvictsOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	l, backend := newTestLedger()

	// 预置一个满容量的台账,避免一千次读改写
	records := make([]model.UsageRecord, maxUsageRecords)
	for i := range records {
		records[i] = usageAt(int64(i), 1)
	}
	data, err := json.Marshal(usageDocument{Records: records})
	require.NoError(t, err)
	_, err = backend.Put(ctx, usageStatsKey, data, blob.PutOptions{AllowOverwrite: true})
	require.NoError(t, err)

	require.NoError(t, l.Record(ctx, usageAt(9999, 1)))

	summary, err := l.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxUsageRecords, summary.TotalMessages)
	// 最旧的被淘汰,最新的在 RecentUsage 首位
	assert.Equal(t, int64(9999), summary.RecentUsage[0].Timestamp)

	doc := l.read(ctx)
	assert.Equal(t, int64(1), doc.Records[0].Timestamp)
}

func TestSummarizeCapsRecentAtTwenty(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	for i := 0; i < 25; i++ {
		require.NoError(t, l.Record(ctx, usageAt(int64(i), 1)))
	}

	summary, err := l.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, summary.TotalMessages)
	require.Len(t, summary.RecentUsage, 20)
	assert.Equal(t, int64(24), summary.RecentUsage[0].Timestamp)
	assert.Equal(t, int64(5), summary.RecentUsage[19].Timestamp)
}

func TestCorruptLedgerStartsFresh(t *testing.T) {
	ctx := context.Background()
	l, backend := newTestLedger()

	_, err := backend.Put(ctx, usageStatsKey, []byte("not json"), blob.PutOptions{AllowOverwrite: true})
	require.NoError(t, err)

	summary, err := l.Summarize(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalMessages)

	// 损坏的历史不阻塞新记录
	require.NoError(t, l.Record(ctx, usageAt(1, 1)))
	summary, err = l.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalMessages)
}
