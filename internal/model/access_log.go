package model

// 访问日志动作
const (
	ActionCreated = "created"
	ActionViewed  = "viewed"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// DeviceInfo 从请求头解析出的客户端信息
type DeviceInfo struct {
	Device         string `json:"device,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os,omitempty"`
	Language       string `json:"language,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	URL            string `json:"url,omitempty"`
	Method         string `json:"method,omitempty"`
	AcceptLanguage string `json:"acceptLanguage,omitempty"`
	AcceptEncoding string `json:"acceptEncoding,omitempty"`
	ConnectionType string `json:"connectionType,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	IsBot          bool   `json:"isBot,omitempty"`
}

// AccessLogEntry 单条访问日志
// (Timestamp, Action) 组合在一个对话的日志内唯一,写入时据此去重
type AccessLogEntry struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	IP        string `json:"ip,omitempty"`
	Region    string `json:"region,omitempty"`
	Country   string `json:"country,omitempty"`
	City      string `json:"city,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	DeviceInfo
}
