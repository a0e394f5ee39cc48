package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/newspaper-digest/internal/domain"
)

const sampleArguments = `{"articles":[{"title":"Monsoon session","content":"Parliament convenes","gs_papers":["GS2"],"one_liner":"Session begins"}]}`

func completionBody(args string, withTool bool) string {
	message := map[string]any{"role": "assistant", "content": "no articles"}
	if withTool {
		message["tool_calls"] = []map[string]any{{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      ExtractArticlesTool,
				"arguments": args,
			},
		}}
	}
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   DefaultModel,
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "tool_calls"}},
	})
	return string(body)
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Options{APIKey: "test-key", BaseURL: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)
	return client
}

func testPage() domain.PageInput {
	return domain.PageInput{
		NewspaperID: uuid.New(),
		PageNumber:  3,
		URL:         "https://storage.example/sign/page_3.pdf?token=abc",
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Options{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	client, err := NewOpenAIClient(Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.Model())
}

func TestExtractArticlesSendsForcedToolCall(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(sampleArguments, true)))
	})

	args, err := client.ExtractArticles(context.Background(), testPage())
	require.NoError(t, err)
	assert.JSONEq(t, sampleArguments, string(args))

	assert.Equal(t, DefaultModel, captured["model"])

	choice := captured["tool_choice"].(map[string]any)
	assert.Equal(t, "function", choice["type"])
	assert.Equal(t, ExtractArticlesTool, choice["function"].(map[string]any)["name"])

	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, ExtractArticlesTool, fn["name"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]any)["text"], "page 3")
	assert.Equal(t, testPage().URL, parts[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestExtractArticlesInlineDataURL(t *testing.T) {
	var url string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		parts := req["messages"].([]any)[1].(map[string]any)["content"].([]any)
		url = parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
		_, _ = w.Write([]byte(completionBody(sampleArguments, true)))
	})

	page := testPage()
	page.URL = ""
	page.Data = []byte("%PDF-1.4")
	page.MIMEType = "image/jpeg"

	_, err := client.ExtractArticles(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestExtractArticlesNoToolCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("", false)))
	})

	_, err := client.ExtractArticles(context.Background(), testPage())
	assert.ErrorIs(t, err, ErrNoToolCall)
}

func TestExtractArticlesRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody(sampleArguments, true)))
	})

	args, err := client.ExtractArticles(context.Background(), testPage())
	require.NoError(t, err)
	assert.JSONEq(t, sampleArguments, string(args))
	assert.Equal(t, int32(3), calls.Load())
}

func TestExtractArticlesPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth_error"}}`))
	})

	_, err := client.ExtractArticles(context.Background(), testPage())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeAPI))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtractArticlesRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})

	_, err := client.ExtractArticles(context.Background(), testPage())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeAPI))
	assert.Equal(t, int32(3), calls.Load())
}

func TestExtractArticlesPageWithoutContent(t *testing.T) {
	client, err := NewOpenAIClient(Options{APIKey: "k"})
	require.NoError(t, err)

	_, err = client.ExtractArticles(context.Background(), domain.PageInput{PageNumber: 1})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}
