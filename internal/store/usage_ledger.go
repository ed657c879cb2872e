package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/F12-Syntex/plantuml-chatbot/internal/blob"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/resolver"
)

// maxUsageRecords 台账容量上限,超出后淘汰最旧的记录
const maxUsageRecords = 1000

// usageDocument usage/usage-stats.json 的文档结构
type usageDocument struct {
	Records []model.UsageRecord `json:"records"`
}

// UsageLedger 用量台账
//
// 所有记录存于单个 JSON 文档,追加走读改写,固定容量 FIFO。
// 记录是尽力而为的计量数据,读失败降级为空文档重新累积,
// 不因历史损坏阻塞新记录写入。
type UsageLedger struct {
	store    blob.Store
	resolver *resolver.Resolver
}

// NewUsageLedger 创建用量台账
func NewUsageLedger(s blob.Store, r *resolver.Resolver) *UsageLedger {
	return &UsageLedger{store: s, resolver: r}
}

// Record 追加一条用量记录
func (l *UsageLedger) Record(ctx context.Context, record model.UsageRecord) error {
	doc := l.read(ctx)

	doc.Records = append(doc.Records, record)
	if over := len(doc.Records) - maxUsageRecords; over > 0 {
		doc.Records = doc.Records[over:]
	}

	if err := l.write(ctx, doc); err != nil {
		return err
	}

	logx.Debug("recorded usage for model %s: %d tokens, $%.6f", record.Model, record.TotalTokens, record.Cost)
	return nil
}

// Summarize 汇总全部记录,并附最近 20 条(新的在前)
func (l *UsageLedger) Summarize(ctx context.Context) (*model.UsageSummary, error) {
	doc := l.read(ctx)

	summary := &model.UsageSummary{
		TotalMessages: len(doc.Records),
		RecentUsage:   []model.UsageRecord{},
	}
	for _, r := range doc.Records {
		summary.TotalCost += r.Cost
		summary.TotalPromptTokens += r.PromptTokens
		summary.TotalCompletionTokens += r.CompletionTokens
	}

	start := len(doc.Records) - 20
	if start < 0 {
		start = 0
	}
	for i := len(doc.Records) - 1; i >= start; i-- {
		summary.RecentUsage = append(summary.RecentUsage, doc.Records[i])
	}
	return summary, nil
}

// read 读取台账文档,任何失败都降级为空文档
func (l *UsageLedger) read(ctx context.Context) usageDocument {
	data, err := l.resolver.Fetch(ctx, usageStatsKey)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			logx.Warn("failed to read usage ledger, starting fresh: %v", err)
		}
		return usageDocument{}
	}

	var doc usageDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		logx.Warn("failed to decode usage ledger, starting fresh: %v", err)
		return usageDocument{}
	}
	return doc
}

// write 整体写回台账文档
func (l *UsageLedger) write(ctx context.Context, doc usageDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode usage ledger: %w", err)
	}

	result, err := l.store.Put(ctx, usageStatsKey, data, blob.PutOptions{
		ContentType:    "application/json",
		Public:         true,
		AllowOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("failed to save usage ledger: %w", err)
	}

	l.resolver.Learn(usageStatsKey, result.URL)
	return nil
}
