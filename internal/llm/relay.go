package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	openai "github.com/sashabaranov/go-openai"

	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
	"github.com/F12-Syntex/plantuml-chatbot/internal/pricing"
)

// CompletionRequest 一次流式补全请求
type CompletionRequest struct {
	Model                  string              `json:"model"`
	Messages               []model.ChatMessage `json:"messages"`
	MaxTokens              int                 `json:"max_tokens"`
	AdditionalInstructions string              `json:"additionalInstructions"`
}

// sseDone 上游与下游共用的流结束哨兵帧
const sseDone = "data: [DONE]\n\n"

// errorFrame 下发给客户端的带内错误帧
type errorFrame struct {
	Type         string `json:"type"`
	Error        string `json:"error"`
	IsImageError bool   `json:"isImageError"`
}

// usageFrame 流结束前下发的用量帧
type usageFrame struct {
	Type string            `json:"type"`
	Data model.UsageRecord `json:"data"`
}

// streamChunk 上游 data 行的部分解码视图
// 只关心错误和用量,增量内容不解码,原样转发
type streamChunk struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Usage *openai.Usage `json:"usage"`
}

// StreamCompletion 向上游发起流式补全,返回 SSE 帧通道
//
// 通道里的每个元素都是一个完整的 SSE 帧("data: ...\n\n"),
// 调用方逐帧写出并 flush 即可。上游内容帧原样转发,本层只做三件事:
// 按行重组、捕获用量(后到覆盖先到)、把带内错误转成错误帧。
// 流正常走完时在唯一的 [DONE] 之前补一个用量帧,并异步落账;
// 带内错误则发出错误帧后立即终止,不再有任何后续帧。
//
// 建立流之前的失败走错误返回值: 凭证缺失为 ErrAPIKeyMissing,
// 上游非 2xx 为 *UpstreamError。
func (c *Client) StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan string, error) {
	if c.config.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	payload := openai.ChatCompletionRequest{
		Model:     modelID,
		Messages:  c.buildMessages(req.Messages, req.AdditionalInstructions),
		MaxTokens: maxTokens,
		Stream:    true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach upstream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		message := upstreamErrorMessage(errBody, fmt.Sprintf("upstream returned status %d", resp.StatusCode))
		logx.Warn("upstream rejected completion request, status %d: %s", resp.StatusCode, message)
		return nil, &UpstreamError{
			StatusCode:   resp.StatusCode,
			Message:      message,
			IsImageError: IsImageRelatedError(message),
		}
	}

	frames := make(chan string, 16)
	go c.pump(ctx, resp.Body, modelID, frames)
	return frames, nil
}

// pump 读取上游响应体,按行重组并逐帧下发
func (c *Client) pump(ctx context.Context, body io.ReadCloser, modelID string, frames chan<- string) {
	defer close(frames)
	defer func() { _ = body.Close() }()

	emit := func(frame string) bool {
		select {
		case frames <- frame:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var lastUsage *openai.Usage

	// finalize 在流自然结束时补用量帧和哨兵帧,并异步落账
	// 带内错误路径不走这里,错误帧就是流的最后一帧
	finalized := false
	finalize := func() {
		if finalized {
			return
		}
		finalized = true

		if lastUsage != nil {
			record := c.buildUsageRecord(modelID, lastUsage)
			if data, err := json.Marshal(usageFrame{Type: "usage", Data: record}); err == nil {
				emit("data: " + string(data) + "\n\n")
			}
			c.recordUsage(record)
		}
		emit(sseDone)
	}

	buf := make([]byte, 4096)
	var pending []byte

	for {
		n, err := body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := string(pending[:idx])
				pending = pending[idx+1:]

				done, terminated := c.relayLine(line, emit, &lastUsage)
				if terminated {
					return
				}
				if done {
					finalize()
					return
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				logx.Warn("upstream stream read error: %v", err)
			}
			// 收尾处理未换行的残余字节,再正常终结
			if line := string(pending); strings.TrimSpace(line) != "" {
				if _, terminated := c.relayLine(line, emit, &lastUsage); terminated {
					return
				}
			}
			finalize()
			return
		}
	}
}

// relayLine 处理一个完整的上游行
// 返回 (是否收到 [DONE], 是否已因带内错误终止)
func (c *Client) relayLine(raw string, emit func(string) bool, lastUsage **openai.Usage) (done, terminated bool) {
	line := strings.TrimSpace(raw)
	if line == "" || !strings.HasPrefix(line, "data: ") {
		// SSE 注释行和事件行对下游无意义,丢弃
		return false, false
	}

	payload := strings.TrimPrefix(line, "data: ")
	if payload == "[DONE]" {
		return true, false
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// 解不开的行原样转发,由客户端自行决定如何处理
		logx.Debug("forwarding undecodable stream line: %v", err)
		emit("data: " + payload + "\n\n")
		return false, false
	}

	if chunk.Error != nil {
		message := chunk.Error.Message
		logx.Warn("upstream in-band error: %s", message)
		frame, err := json.Marshal(errorFrame{
			Type:         "error",
			Error:        message,
			IsImageError: IsImageRelatedError(message),
		})
		if err == nil {
			emit("data: " + string(frame) + "\n\n")
		}
		return false, true
	}

	if chunk.Usage != nil {
		*lastUsage = chunk.Usage
	}

	emit("data: " + payload + "\n\n")
	return false, false
}

// buildUsageRecord 由上游用量对象换算成台账记录
func (c *Client) buildUsageRecord(modelID string, usage *openai.Usage) model.UsageRecord {
	return model.UsageRecord{
		Timestamp:        time.Now().UnixMilli(),
		Model:            modelID,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Cost:             pricing.Cost(modelID, usage.PromptTokens, usage.CompletionTokens),
	}
}

// recordUsage 异步落账,不阻塞也不影响流的终结
func (c *Client) recordUsage(record model.UsageRecord) {
	if c.usage == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.usage.Record(ctx, record); err != nil {
			logx.Warn("failed to record usage: %v", err)
		}
	}()
}

// buildMessages 组装上游消息列表
// 角色设定置于最前,调用方自带 system 消息时以调用方为准;
// 附加指令并入角色设定,调用方自带 system 时单独成条置顶
func (c *Client) buildMessages(messages []model.ChatMessage, extra string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+2)

	if len(messages) == 0 || messages[0].Role != model.RoleSystem {
		content := systemPrompt
		if extra != "" {
			content += "\n\n" + extra
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: content,
		})
	} else if extra != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: extra,
		})
	}

	for _, msg := range messages {
		out = append(out, toOpenAIMessage(msg))
	}
	return out
}

// toOpenAIMessage 转换单条消息,多模态分段映射为 MultiContent
func toOpenAIMessage(msg model.ChatMessage) openai.ChatCompletionMessage {
	if msg.Content.IsPlain() {
		return openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content.Text,
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(msg.Content.Parts))
	for _, part := range msg.Content.Parts {
		switch part.Type {
		case model.PartTypeImage:
			if part.ImageURL == nil {
				continue
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: part.ImageURL.URL},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		}
	}
	return openai.ChatCompletionMessage{
		Role:         msg.Role,
		MultiContent: parts,
	}
}
