package llm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/F12-Syntex/plantuml-chatbot/internal/config"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
)

// systemPrompt PlantUML 专家角色设定,随每次对话作为 system 消息下发
const systemPrompt = `You are a PlantUML diagram expert. When users describe what they want, generate the complete PlantUML code.

Rules:
1. Always provide ONLY the raw PlantUML code starting with @startuml and ending with @enduml
2. DO NOT wrap the code in markdown code blocks or backticks
3. DO NOT add explanations before or after unless specifically requested
4. The code should be directly usable
5. Include helpful comments within the PlantUML syntax using ' for single-line comments
6. For complex diagrams, add brief structural comments
7. Always start fresh with complete code from @startuml to @enduml
8. When modifying existing diagrams, provide the FULL updated code from the beginning`

// UsageRecorder 用量记录接口,由用量台账实现
type UsageRecorder interface {
	Record(ctx context.Context, record model.UsageRecord) error
}

// Client OpenRouter 兼容上游的客户端
type Client struct {
	config     *config.LLMConfig
	httpClient *http.Client
	usage      UsageRecorder
}

// NewClient 创建 LLM 客户端
// usage 可以为 nil,此时不记录用量
func NewClient(cfg *config.LLMConfig, usage UsageRecorder) *Client {
	// 禁用 HTTP/2,强制 HTTP/1.1,部分网关的 HTTP/2 实现
	// 在长流式响应上会报 INTERNAL_ERROR
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSNextProto:        make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}

	logx.Info("LLM client initialized, model %s, base url %s", cfg.Model, cfg.BaseURL)

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   600 * time.Second,
		},
		usage: usage,
	}
}

// Model 返回默认模型 ID
func (c *Client) Model() string {
	return c.config.Model
}

// get 带鉴权的上游 GET 请求
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if c.config.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.config.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    upstreamErrorMessage(body, fmt.Sprintf("upstream returned status %d", resp.StatusCode)),
		}
	}
	return body, nil
}

// ListModels 拉取上游模型目录,只保留纯文本模型
func (c *Client) ListModels(ctx context.Context) ([]json.RawMessage, error) {
	body, err := c.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	var catalog struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode model catalog: %w", err)
	}

	textOnly := make([]json.RawMessage, 0, len(catalog.Data))
	for _, raw := range catalog.Data {
		var meta struct {
			Architecture struct {
				Modality string `json:"modality"`
			} `json:"architecture"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		if strings.HasPrefix(meta.Architecture.Modality, "text->") {
			textOnly = append(textOnly, raw)
		}
	}

	logx.Debug("fetched %d models, %d text-only", len(catalog.Data), len(textOnly))
	return textOnly, nil
}

// GetCredits 拉取上游账户余额,原样透传响应
func (c *Client) GetCredits(ctx context.Context) (json.RawMessage, error) {
	body, err := c.get(ctx, "/credits")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// upstreamErrorMessage 从上游错误响应体中提取人类可读消息
func upstreamErrorMessage(body []byte, fallback string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}
