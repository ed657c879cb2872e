package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F12-Syntex/plantuml-chatbot/internal/config"
	"github.com/F12-Syntex/plantuml-chatbot/internal/model"
)

type recorderStub struct {
	ch chan model.UsageRecord
}

func newRecorderStub() *recorderStub {
	return &recorderStub{ch: make(chan model.UsageRecord, 4)}
}

func (r *recorderStub) Record(ctx context.Context, record model.UsageRecord) error {
	r.ch <- record
	return nil
}

func (r *recorderStub) wait(t *testing.T) model.UsageRecord {
	t.Helper()
	select {
	case rec := <-r.ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("usage record was never persisted")
		return model.UsageRecord{}
	}
}

func newTestClient(baseURL string, usage UsageRecorder) *Client {
	return NewClient(&config.LLMConfig{
		Enabled:   true,
		Model:     "openai/gpt-4o-mini",
		APIKey:    "test-key",
		BaseURL:   baseURL,
		MaxTokens: 256,
	}, usage)
}

// sseUpstream 返回一个回放固定字节流的上游
// byteByByte 为 true 时逐字节写出,模拟最碎的分块
func sseUpstream(t *testing.T, body string, byteByByte bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		if byteByByte {
			for i := 0; i < len(body); i++ {
				_, _ = w.Write([]byte{body[i]})
				flusher.Flush()
			}
			return
		}
		_, _ = w.Write([]byte(body))
		flusher.Flush()
	}))
}

func collectFrames(t *testing.T, c *Client) []string {
	t.Helper()
	frames, err := c.StreamCompletion(context.Background(), CompletionRequest{
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: model.PlainContent("draw a sequence diagram")}},
	})
	require.NoError(t, err)

	var out []string
	for frame := range frames {
		out = append(out, frame)
	}
	return out
}

const happyStream = "data: {\"choices\":[{\"delta\":{\"content\":\"@start\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"uml\"}}]}\n\n" +
	"data: {\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":5,\"total_tokens\":15}}\n\n" +
	"data: [DONE]\n\n" +
	"data: [DONE]\n\n"

func TestStreamCompletionEmitsExactlyOneFinalDone(t *testing.T) {
	upstream := sseUpstream(t, happyStream, false)
	defer upstream.Close()

	rec := newRecorderStub()
	frames := collectFrames(t, newTestClient(upstream.URL, rec))

	doneCount := 0
	for _, f := range frames {
		if f == sseDone {
			doneCount++
		}
	}
	assert.Equal(t, 1, doneCount)
	assert.Equal(t, sseDone, frames[len(frames)-1])
}

func TestStreamCompletionUsageFramePrecedesDone(t *testing.T) {
	upstream := sseUpstream(t, happyStream, false)
	defer upstream.Close()

	rec := newRecorderStub()
	frames := collectFrames(t, newTestClient(upstream.URL, rec))
	require.GreaterOrEqual(t, len(frames), 2)

	var frame usageFrame
	payload := strings.TrimSuffix(strings.TrimPrefix(frames[len(frames)-2], "data: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &frame))
	assert.Equal(t, "usage", frame.Type)
	assert.Equal(t, 10, frame.Data.PromptTokens)
	assert.Equal(t, 5, frame.Data.CompletionTokens)
	assert.Equal(t, 15, frame.Data.TotalTokens)
	assert.Greater(t, frame.Data.Cost, 0.0)

	persisted := rec.wait(t)
	assert.Equal(t, frame.Data.TotalTokens, persisted.TotalTokens)
	assert.Equal(t, "openai/gpt-4o-mini", persisted.Model)
}

func TestStreamCompletionReassemblyIsSplitInsensitive(t *testing.T) {
	whole := sseUpstream(t, happyStream, false)
	defer whole.Close()
	fragmented := sseUpstream(t, happyStream, true)
	defer fragmented.Close()

	wholeFrames := collectFrames(t, newTestClient(whole.URL, nil))
	fragmentedFrames := collectFrames(t, newTestClient(fragmented.URL, nil))

	// 时间戳字段会不同,只比较帧序列中的非用量帧和帧数
	require.Equal(t, len(wholeFrames), len(fragmentedFrames))
	for i := range wholeFrames {
		if strings.Contains(wholeFrames[i], "\"type\":\"usage\"") {
			assert.Contains(t, fragmentedFrames[i], "\"type\":\"usage\"")
			continue
		}
		assert.Equal(t, wholeFrames[i], fragmentedFrames[i])
	}
}

func TestStreamCompletionLastUsageWins(t *testing.T) {
	body := "data: {\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}}\n\n" +
		"data: {\"usage\":{\"prompt_tokens\":30,\"completion_tokens\":20,\"total_tokens\":50}}\n\n" +
		"data: [DONE]\n\n"
	upstream := sseUpstream(t, body, false)
	defer upstream.Close()

	rec := newRecorderStub()
	collectFrames(t, newTestClient(upstream.URL, rec))

	persisted := rec.wait(t)
	assert.Equal(t, 30, persisted.PromptTokens)
	assert.Equal(t, 20, persisted.CompletionTokens)
	assert.Equal(t, 50, persisted.TotalTokens)
}

func TestStreamCompletionInBandErrorTerminatesStream(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"This model does not support image input\"}}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"after\"}}]}\n\n" +
		"data: [DONE]\n\n"
	upstream := sseUpstream(t, body, false)
	defer upstream.Close()

	frames := collectFrames(t, newTestClient(upstream.URL, nil))
	require.NotEmpty(t, frames)

	last := frames[len(frames)-1]
	var frame errorFrame
	payload := strings.TrimSuffix(strings.TrimPrefix(last, "data: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &frame))
	assert.Equal(t, "error", frame.Type)
	assert.True(t, frame.IsImageError)

	for _, f := range frames {
		assert.NotEqual(t, sseDone, f)
		assert.NotContains(t, f, "after")
	}
}

func TestStreamCompletionEOFWithoutDoneStillFinalizes(t *testing.T) {
	// 上游异常掉线,没有 [DONE],残余的半行也要处理
	body := "data: {\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":4,\"total_tokens\":7}}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}"
	upstream := sseUpstream(t, body, false)
	defer upstream.Close()

	frames := collectFrames(t, newTestClient(upstream.URL, nil))
	require.NotEmpty(t, frames)
	assert.Equal(t, sseDone, frames[len(frames)-1])
	assert.Contains(t, strings.Join(frames, ""), "tail")
}

func TestStreamCompletionForwardsUndecodableLinesVerbatim(t *testing.T) {
	body := "data: not-json-at-all\n\n" +
		"data: [DONE]\n\n"
	upstream := sseUpstream(t, body, false)
	defer upstream.Close()

	frames := collectFrames(t, newTestClient(upstream.URL, nil))
	require.Len(t, frames, 2)
	assert.Equal(t, "data: not-json-at-all\n\n", frames[0])
}

func TestStreamCompletionMissingAPIKey(t *testing.T) {
	client := NewClient(&config.LLMConfig{Model: "openai/gpt-4o-mini", BaseURL: "http://127.0.0.1:0"}, nil)

	_, err := client.StreamCompletion(context.Background(), CompletionRequest{
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: model.PlainContent("hi")}},
	})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestStreamCompletionUpstreamRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This model does not support image input"}}`))
	}))
	defer upstream.Close()

	_, err := newTestClient(upstream.URL, nil).StreamCompletion(context.Background(), CompletionRequest{
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: model.PlainContent("hi")}},
	})
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusBadRequest, upstreamErr.StatusCode)
	assert.True(t, upstreamErr.IsImageError)
	assert.Contains(t, upstreamErr.Message, "image input")
}

func TestBuildMessagesPrependsPersona(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", nil)

	msgs := client.buildMessages([]model.ChatMessage{
		{Role: model.RoleUser, Content: model.PlainContent("hi")},
	}, "")
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "PlantUML")

	// 附加指令拼在角色设定之后
	msgs = client.buildMessages([]model.ChatMessage{
		{Role: model.RoleUser, Content: model.PlainContent("hi")},
	}, "Always answer in French")
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "PlantUML")
	assert.Contains(t, msgs[0].Content, "Always answer in French")

	// 调用方自带 system 消息时不再叠加
	msgs = client.buildMessages([]model.ChatMessage{
		{Role: model.RoleSystem, Content: model.PlainContent("custom persona")},
		{Role: model.RoleUser, Content: model.PlainContent("hi")},
	}, "")
	require.Len(t, msgs, 2)
	assert.Equal(t, "custom persona", msgs[0].Content)

	// 自带 system 且有附加指令时,附加指令单独成条置顶
	msgs = client.buildMessages([]model.ChatMessage{
		{Role: model.RoleSystem, Content: model.PlainContent("custom persona")},
		{Role: model.RoleUser, Content: model.PlainContent("hi")},
	}, "Always answer in French")
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Always answer in French", msgs[0].Content)
	assert.Equal(t, "custom persona", msgs[1].Content)
}

func TestToOpenAIMessageMultiContent(t *testing.T) {
	msg := model.ChatMessage{
		Role: model.RoleUser,
		Content: model.MessageContent{Parts: []model.MessagePart{
			{Type: model.PartTypeText, Text: "what is this"},
			{Type: model.PartTypeImage, ImageURL: &model.ImageRef{URL: "https://example.com/a.png"}},
		}},
	}

	converted := toOpenAIMessage(msg)
	assert.Empty(t, converted.Content)
	require.Len(t, converted.MultiContent, 2)
	assert.Equal(t, "what is this", converted.MultiContent[0].Text)
	assert.Equal(t, "https://example.com/a.png", converted.MultiContent[1].ImageURL.URL)
}
