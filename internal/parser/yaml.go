package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLParser is the YAML variant of the structured-text parser. The
// result shape mirrors the JSON parser.
type YAMLParser struct{}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Name() string {
	return "yaml"
}

func (p *YAMLParser) Matches(typeTag, filename string) bool {
	switch typeTag {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (p *YAMLParser) Parse(data []byte) (map[string]any, error) {
	var value any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return map[string]any{
		"type": yamlShapeTag(value),
		"data": value,
	}, nil
}

// yamlShapeTag extends shapeTag with the integer and map types the
// yaml decoder produces.
func yamlShapeTag(value any) string {
	switch value.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case int, int64, float64:
		return "number"
	default:
		return shapeTag(value)
	}
}
