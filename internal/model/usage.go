package model

// UsageRecord 单次对话的用量记录
type UsageRecord struct {
	// Timestamp Unix 毫秒时间戳
	Timestamp        int64   `json:"timestamp"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	Cost             float64 `json:"cost"`
}

// UsageSummary 用量汇总
type UsageSummary struct {
	TotalCost             float64       `json:"totalCost"`
	TotalMessages         int           `json:"totalMessages"`
	TotalPromptTokens     int           `json:"totalPromptTokens"`
	TotalCompletionTokens int           `json:"totalCompletionTokens"`
	RecentUsage           []UsageRecord `json:"recentUsage"`
}
