package deck

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

const outlineSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"summary": {"type": "string"},
		"slideCount": {"type": "integer", "minimum": 0},
		"slides": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"keyPoints": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

const slideSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"content": {
			"oneOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		},
		"layout": {"type": "string"},
		"designNotes": {"type": "string"},
		"speakerNotes": {"type": "string"}
	},
	"required": ["content"]
}`

// schemas holds the compiled reply schemas.
type schemas struct {
	outline *jsonschema.Schema
	slide   *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	outline, err := compiler.Compile([]byte(outlineSchema))
	if err != nil {
		return nil, fmt.Errorf("compile outline schema: %w", err)
	}
	slide, err := compiler.Compile([]byte(slideSchema))
	if err != nil {
		return nil, fmt.Errorf("compile slide schema: %w", err)
	}
	return &schemas{outline: outline, slide: slide}, nil
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes markdown code fences if the LLM wrapped its output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// sanitizeJSON reduces an LLM reply to its JSON value: fences are removed and
// any prose around the outermost object or array is dropped. An empty reply
// becomes "{}".
func sanitizeJSON(s string) string {
	s = stripCodeFences(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
	if s == "" {
		return "{}"
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		return s[start : end+1]
	}
	return s
}

// decodeValidated sanitizes raw, validates it against schema and decodes it
// into dst.
func decodeValidated(raw string, schema *jsonschema.Schema, dst any) error {
	clean := sanitizeJSON(raw)

	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	if result := schema.Validate(parsed); !result.IsValid() {
		return fmt.Errorf("JSON did not match schema: %s", result.Error())
	}
	if err := json.Unmarshal([]byte(clean), dst); err != nil {
		return fmt.Errorf("decode: %v", err)
	}
	return nil
}

// slideReply is the slide shape an LLM returns. Content may be a list of
// bullet points instead of a single string.
type slideReply struct {
	Title        string          `json:"title"`
	Content      json.RawMessage `json:"content"`
	Layout       string          `json:"layout"`
	DesignNotes  string          `json:"designNotes"`
	SpeakerNotes string          `json:"speakerNotes"`
}

func (r slideReply) content() string {
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(r.Content, &list); err == nil {
		for i, item := range list {
			list[i] = "- " + strings.TrimSpace(strings.TrimPrefix(item, "- "))
		}
		return strings.Join(list, "\n")
	}
	return ""
}
