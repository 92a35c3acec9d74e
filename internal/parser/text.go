package parser

import (
	"strings"
	"unicode/utf8"
)

// PreviewLimit is the maximum number of characters of a text file
// returned in the parsed content. Longer files are truncated with an
// explicit marker.
const PreviewLimit = 1000

// TextParser handles plain-text files, reporting line and character
// counts with a bounded preview.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Name() string {
	return "text"
}

func (p *TextParser) Matches(typeTag, filename string) bool {
	return strings.HasPrefix(typeTag, "text/") || strings.HasSuffix(strings.ToLower(filename), ".txt")
}

func (p *TextParser) Parse(data []byte) (map[string]any, error) {
	content := string(data)

	chars := utf8.RuneCountInString(content)
	preview := content
	if chars > PreviewLimit {
		runes := []rune(content)
		preview = string(runes[:PreviewLimit]) + "..."
	}

	return map[string]any{
		"lines":      len(strings.Split(content, "\n")),
		"characters": chars,
		"content":    preview,
	}, nil
}
