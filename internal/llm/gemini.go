package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// DefaultGeminiModel is the native Gemini model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-pro"

// GeminiClient calls the Gemini API directly.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	opts   Options
}

var _ domain.ExtractionCapability = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client with the extract_articles tool
// registered and forced.
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.ConfigError("Gemini API key is required", nil)
	}
	if opts.Model == "" || strings.Contains(opts.Model, "/") {
		opts.Model = DefaultGeminiModel
	}
	opts.applyDefaults()

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, domain.ConfigError("failed to create Gemini client", err)
	}

	model := client.GenerativeModel(opts.Model)
	configureModel(model)

	return &GeminiClient{client: client, model: model, opts: opts}, nil
}

func configureModel(model *genai.GenerativeModel) {
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemPrompt())}}
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        ExtractArticlesTool,
			Description: extractArticlesDescription,
			Parameters:  GeminiParameters(),
		}},
	}}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{ExtractArticlesTool},
		},
	}
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// ExtractArticles sends one page and returns the extract_articles arguments
// re-encoded as JSON.
func (c *GeminiClient) ExtractArticles(ctx context.Context, page domain.PageInput) (json.RawMessage, error) {
	pagePart, err := geminiPagePart(page)
	if err != nil {
		return nil, err
	}

	var resp *genai.GenerateContentResponse
	err = retryWithBackoff(ctx, c.opts.Retry, c.opts.Logger, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		var callErr error
		resp, callErr = c.model.GenerateContent(callCtx, pagePart, genai.Text(UserPrompt(page.PageNumber)))
		return callErr
	})
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeAPI) || ctx.Err() != nil {
			return nil, err
		}
		return nil, domain.APIError("Gemini request failed", err)
	}

	return functionArguments(resp)
}

func geminiPagePart(page domain.PageInput) (genai.Part, error) {
	mime := page.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}

	if len(page.Data) > 0 {
		return genai.Blob{MIMEType: mime, Data: page.Data}, nil
	}
	if page.URL != "" {
		return genai.FileData{MIMEType: mime, URI: page.URL}, nil
	}
	return nil, domain.ValidationError(fmt.Sprintf("page %d has neither URL nor data", page.PageNumber), nil)
}

func functionArguments(resp *genai.GenerateContentResponse) (json.RawMessage, error) {
	if resp == nil {
		return nil, ErrNoToolCall
	}

	for _, cand := range resp.Candidates {
		for _, call := range cand.FunctionCalls() {
			if call.Name != ExtractArticlesTool {
				continue
			}
			args, err := json.Marshal(call.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function args: %w", err)
			}
			return args, nil
		}
	}
	return nil, ErrNoToolCall
}
