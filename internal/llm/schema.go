// Package llm implements the extraction capability: a multimodal model call
// forced through the extract_articles function tool.
package llm

import (
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/spherical/newspaper-digest/internal/domain"
)

const (
	// ExtractArticlesTool is the function every provider is forced to call.
	ExtractArticlesTool = "extract_articles"

	extractArticlesDescription = "Extract all UPSC-relevant articles from the newspaper page"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindStringList
	kindBool
)

type field struct {
	name        string
	description string
	kind        fieldKind
	enum        []string
	required    bool
}

// articleFields is the per-article schema shared by every provider.
var articleFields = []field{
	{name: "title", description: "Article headline", kind: kindString, required: true},
	{name: "content", description: "Full article content or detailed summary", kind: kindString, required: true},
	{name: "gs_papers", description: "Which GS papers this article is relevant for", kind: kindStringList, enum: paperNames(), required: true},
	{name: "gs_syllabus_topics", description: "Specific UPSC syllabus topics covered", kind: kindStringList},
	{name: "keywords", description: "Important keywords and terms", kind: kindStringList},
	{name: "one_liner", description: "One sentence summary", kind: kindString, required: true},
	{name: "key_points", description: "Bullet points for answer writing", kind: kindString},
	{name: "prelims_card", description: "Important facts for prelims MCQs", kind: kindString},
	{name: "static_topics", description: "Static topics to revise related to this article", kind: kindStringList},
	{name: "static_explanation", description: "Brief explanation of static concepts", kind: kindString},
	{name: "is_important", description: "Is this article highly important for UPSC?", kind: kindBool},
}

func paperNames() []string {
	names := make([]string, len(domain.GSPapers))
	for i, p := range domain.GSPapers {
		names[i] = string(p)
	}
	return names
}

func requiredFields() []string {
	var out []string
	for _, f := range articleFields {
		if f.required {
			out = append(out, f.name)
		}
	}
	return out
}

// ToolParameters returns the extract_articles parameters as JSON schema.
func ToolParameters() jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(articleFields))
	for _, f := range articleFields {
		def := jsonschema.Definition{Description: f.description}
		switch f.kind {
		case kindString:
			def.Type = jsonschema.String
		case kindBool:
			def.Type = jsonschema.Boolean
		case kindStringList:
			def.Type = jsonschema.Array
			def.Items = &jsonschema.Definition{Type: jsonschema.String, Enum: f.enum}
		}
		props[f.name] = def
	}

	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"articles": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type:       jsonschema.Object,
					Properties: props,
					Required:   requiredFields(),
				},
			},
		},
		Required: []string{"articles"},
	}
}

// GeminiParameters returns the same schema in the Gemini representation.
func GeminiParameters() *genai.Schema {
	props := make(map[string]*genai.Schema, len(articleFields))
	for _, f := range articleFields {
		s := &genai.Schema{Description: f.description}
		switch f.kind {
		case kindString:
			s.Type = genai.TypeString
		case kindBool:
			s.Type = genai.TypeBoolean
		case kindStringList:
			s.Type = genai.TypeArray
			item := &genai.Schema{Type: genai.TypeString}
			if len(f.enum) > 0 {
				item.Format = "enum"
				item.Enum = f.enum
			}
			s.Items = item
		}
		props[f.name] = s
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"articles": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: props,
					Required:   requiredFields(),
				},
			},
		},
		Required: []string{"articles"},
	}
}
