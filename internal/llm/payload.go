package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingArticles is returned when tool arguments carry no articles key.
var ErrMissingArticles = errors.New("tool arguments have no articles field")

// ExtractionPayload is the decoded extract_articles tool call.
type ExtractionPayload struct {
	Articles []RawArticle `json:"articles"`
}

// RawArticle is one article exactly as the model returned it.
type RawArticle struct {
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	GSPapers          StringList `json:"gs_papers"`
	GSSyllabusTopics  StringList `json:"gs_syllabus_topics"`
	Keywords          StringList `json:"keywords"`
	OneLiner          string     `json:"one_liner"`
	KeyPoints         Text       `json:"key_points"`
	PrelimsCard       Text       `json:"prelims_card"`
	StaticTopics      StringList `json:"static_topics"`
	StaticExplanation Text       `json:"static_explanation"`
	IsImportant       Flag       `json:"is_important"`
}

// ParsePayload decodes raw tool arguments.
func ParsePayload(raw json.RawMessage) (*ExtractionPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty tool arguments")
	}

	var probe struct {
		Articles *json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	if probe.Articles == nil {
		return nil, ErrMissingArticles
	}

	var payload ExtractionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return &payload, nil
}

// StringList accepts a JSON array of strings, a single string or null.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitList(s)
		return nil
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// splitList breaks a comma separated string the model returned in place
// of an array.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Text accepts a string or an array of strings, joining the latter with
// newlines. Models often return key points as a list.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*t = Text(strings.Join(lines, "\n"))
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// Flag accepts a JSON boolean or its string spelling.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "yes", "1":
		*f = true
	case "false", "no", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}
