// Package parser turns raw uploaded bytes into structured content.
// Parsers are pure and stateless; the registry picks one by type tag.
package parser

// Parser converts raw file bytes into a structured result.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Matches reports whether this parser handles the given type tag,
	// falling back to the filename extension.
	Matches(typeTag, filename string) bool
	// Parse parses the raw bytes and returns the structured result.
	Parse(data []byte) (map[string]any, error)
}
