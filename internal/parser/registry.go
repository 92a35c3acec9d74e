package parser

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned when no parser matches a type tag.
var ErrUnsupportedType = errors.New("unsupported type")

// Registry holds all available parsers in match order.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns a registry with the built-in parsers. Order
// matters: the CSV parser must win over the plain-text parser for
// "text/csv".
func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewCSVParser(),
			NewJSONParser(),
			NewYAMLParser(),
			NewTextParser(),
		},
	}
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Resolve finds the parser for a type tag, falling back to the
// filename extension.
func (r *Registry) Resolve(typeTag, filename string) (Parser, error) {
	for _, p := range r.parsers {
		if p.Matches(typeTag, filename) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typeTag)
}
