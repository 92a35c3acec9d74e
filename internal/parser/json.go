package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONParser handles structured-text files. The result tags the
// top-level shape of the document alongside the decoded value.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Name() string {
	return "json"
}

func (p *JSONParser) Matches(typeTag, filename string) bool {
	return typeTag == "application/json" || strings.HasSuffix(strings.ToLower(filename), ".json")
}

func (p *JSONParser) Parse(data []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return map[string]any{
		"type": shapeTag(value),
		"data": value,
	}, nil
}

// shapeTag names the top-level shape of a decoded document.
func shapeTag(value any) string {
	switch value.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}
