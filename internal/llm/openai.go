package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/observability"
)

const (
	// DefaultBaseURL is the OpenAI-compatible gateway used when none is configured.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the multimodal model used when none is configured.
	DefaultModel = "google/gemini-2.5-pro"

	defaultTimeout = 5 * time.Minute
)

// ErrNoToolCall is returned when the model answers without calling the tool.
var ErrNoToolCall = errors.New("model returned no tool call")

// Options configures a provider client.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Retry      *RetryConfig
	HTTPClient *http.Client
	Logger     *observability.Logger
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Retry == nil {
		o.Retry = DefaultRetryConfig()
	}
	if o.Logger == nil {
		o.Logger = observability.NopLogger()
	}
}

// OpenAIClient calls an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	opts   Options
}

var _ domain.ExtractionCapability = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for an OpenAI-compatible gateway.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.ConfigError("LLM API key is required", nil)
	}
	opts.applyDefaults()

	config := openai.DefaultConfig(opts.APIKey)
	config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  opts.Model,
		opts:   opts,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// ExtractArticles sends one page and returns the raw extract_articles arguments.
func (c *OpenAIClient) ExtractArticles(ctx context.Context, page domain.PageInput) (json.RawMessage, error) {
	req, err := c.buildRequest(page)
	if err != nil {
		return nil, err
	}

	var resp openai.ChatCompletionResponse
	err = retryWithBackoff(ctx, c.opts.Retry, c.opts.Logger, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeAPI) || ctx.Err() != nil {
			return nil, err
		}
		if code := StatusCode(err); code != 0 {
			return nil, domain.APIError(fmt.Sprintf("extraction API returned status %d", code), err)
		}
		return nil, domain.APIError("extraction request failed", err)
	}

	return toolArguments(resp)
}

func (c *OpenAIClient) buildRequest(page domain.PageInput) (openai.ChatCompletionRequest, error) {
	imageURL, err := pageURL(page)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(),
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: UserPrompt(page.PageNumber),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        ExtractArticlesTool,
					Description: extractArticlesDescription,
					Parameters:  ToolParameters(),
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: ExtractArticlesTool},
		},
	}, nil
}

// pageURL returns the URL form of the page: the signed URL when present,
// otherwise a data URL of the inline bytes.
func pageURL(page domain.PageInput) (string, error) {
	if page.URL != "" {
		return page.URL, nil
	}
	if len(page.Data) == 0 {
		return "", domain.ValidationError(fmt.Sprintf("page %d has neither URL nor data", page.PageNumber), nil)
	}

	mime := page.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(page.Data), nil
}

func toolArguments(resp openai.ChatCompletionResponse) (json.RawMessage, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoToolCall
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == ExtractArticlesTool || call.Function.Name == "" {
			return json.RawMessage(call.Function.Arguments), nil
		}
	}
	return nil, ErrNoToolCall
}
