package llm

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/newspaper-digest/internal/domain"
)

func TestToolParameters(t *testing.T) {
	raw, err := json.Marshal(ToolParameters())
	require.NoError(t, err)

	var schema struct {
		Required   []string `json:"required"`
		Properties struct {
			Articles struct {
				Items struct {
					Required   []string                   `json:"required"`
					Properties map[string]json.RawMessage `json:"properties"`
				} `json:"items"`
			} `json:"articles"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.Equal(t, []string{"articles"}, schema.Required)
	items := schema.Properties.Articles.Items
	assert.ElementsMatch(t, []string{"title", "content", "gs_papers", "one_liner"}, items.Required)
	assert.Len(t, items.Properties, len(articleFields))
	assert.Contains(t, string(items.Properties["gs_papers"]), `"GS4"`)
}

func TestGeminiParametersMirrorsToolParameters(t *testing.T) {
	s := GeminiParameters()
	assert.Equal(t, genai.TypeObject, s.Type)

	item := s.Properties["articles"].Items
	require.NotNil(t, item)
	assert.Len(t, item.Properties, len(articleFields))
	assert.Equal(t, requiredFields(), item.Required)
	assert.Equal(t, genai.TypeBoolean, item.Properties["is_important"].Type)
	assert.Equal(t, paperNames(), item.Properties["gs_papers"].Items.Enum)
}

func TestUserPromptEmbedsTaxonomy(t *testing.T) {
	prompt := UserPrompt(7)
	assert.Contains(t, prompt, "page 7")
	for _, p := range domain.GSPapers {
		assert.Contains(t, prompt, domain.GSPaperScope[p])
		assert.Contains(t, prompt, domain.GSTopics[p][0])
	}
	assert.Contains(t, SystemPrompt(), "UPSC")
}

func TestParsePayload(t *testing.T) {
	t.Run("missing articles", func(t *testing.T) {
		_, err := ParsePayload(json.RawMessage(`{"items":[]}`))
		assert.ErrorIs(t, err, ErrMissingArticles)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParsePayload(json.RawMessage(`{"articles":[`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParsePayload(nil)
		assert.Error(t, err)
	})

	t.Run("lenient field shapes", func(t *testing.T) {
		payload, err := ParsePayload(json.RawMessage(`{"articles":[{
			"title":"A","content":"B",
			"gs_papers":"GS1, GS3",
			"keywords":null,
			"key_points":["one","two"],
			"is_important":"true"
		}]}`))
		require.NoError(t, err)
		require.Len(t, payload.Articles, 1)

		a := payload.Articles[0]
		assert.Equal(t, StringList{"GS1", "GS3"}, a.GSPapers)
		assert.Nil(t, a.Keywords)
		assert.Equal(t, Text("one\ntwo"), a.KeyPoints)
		assert.True(t, bool(a.IsImportant))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ParsePayload(json.RawMessage(`{"articles":[{"title":"A","content":"B","is_important":"perhaps"}]}`))
		assert.Error(t, err)
	})
}

func TestFunctionArguments(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.FunctionCall{Name: ExtractArticlesTool, Args: map[string]any{"articles": []any{}}},
			}},
		}},
	}

	args, err := functionArguments(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"articles":[]}`, string(args))

	_, err = functionArguments(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrNoToolCall)
}

func TestGeminiPagePart(t *testing.T) {
	part, err := geminiPagePart(domain.PageInput{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, genai.Blob{MIMEType: "application/pdf", Data: []byte("x")}, part)

	part, err = geminiPagePart(domain.PageInput{URL: "https://x/y.pdf"})
	require.NoError(t, err)
	assert.Equal(t, genai.FileData{MIMEType: "application/pdf", URI: "https://x/y.pdf"}, part)

	_, err = geminiPagePart(domain.PageInput{})
	assert.Error(t, err)
}
