package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles delimited tabular files. The first record is the
// header; every following record becomes a row keyed by column name.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Name() string {
	return "csv"
}

func (p *CSVParser) Matches(typeTag, filename string) bool {
	return typeTag == "text/csv" || strings.HasSuffix(strings.ToLower(filename), ".csv")
}

func (p *CSVParser) Parse(data []byte) (map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("failed to parse CSV: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	columns := make([]string, len(header))
	copy(columns, header)

	rows := []map[string]any{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return map[string]any{
		"rows":    len(rows),
		"columns": columns,
		"data":    rows,
	}, nil
}
