package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name     string
		typeTag  string
		filename string
		want     string
	}{
		{"csv by tag", "text/csv", "data.bin", "csv"},
		{"csv by extension", "application/octet-stream", "data.csv", "csv"},
		{"json by tag", "application/json", "data.bin", "json"},
		{"json by extension", "application/octet-stream", "data.json", "json"},
		{"yaml by tag", "application/yaml", "config", "yaml"},
		{"yaml by yml extension", "application/octet-stream", "config.yml", "yaml"},
		{"plain text by tag prefix", "text/plain", "notes.bin", "text"},
		{"txt extension", "application/octet-stream", "notes.txt", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.Resolve(tt.typeTag, tt.filename)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Expected parser %s, got %s", tt.want, p.Name())
			}
		})
	}

	t.Run("csv wins over text for text/csv", func(t *testing.T) {
		p, err := registry.Resolve("text/csv", "data.csv")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if p.Name() != "csv" {
			t.Errorf("Expected csv parser, got %s", p.Name())
		}
	})

	t.Run("unknown type tag", func(t *testing.T) {
		_, err := registry.Resolve("application/pdf", "report.pdf")
		if err == nil {
			t.Fatal("Expected error for unknown type")
		}
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
		if !strings.Contains(err.Error(), "unsupported type") {
			t.Errorf("Expected message to mention unsupported type, got %q", err.Error())
		}
		if !strings.Contains(err.Error(), "application/pdf") {
			t.Errorf("Expected message to carry the tag, got %q", err.Error())
		}
	})
}

type fakeParser struct{}

func (fakeParser) Name() string                   { return "fake" }
func (fakeParser) Matches(typeTag, _ string) bool { return typeTag == "application/fake" }
func (fakeParser) Parse([]byte) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register(fakeParser{})

	p, err := registry.Resolve("application/fake", "x")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Name() != "fake" {
		t.Errorf("Expected registered parser, got %s", p.Name())
	}
}
