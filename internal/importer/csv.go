package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one CSV data row keyed by the (normalized) header names
type Row map[string]string

// ParseCSV reads a client import file into header-keyed rows. Header
// names are lowercased and trimmed so "Company Name" and "company_name"
// both key the same field.
func ParseCSV(r io.Reader, maxRows int) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = normalizeHeader(h)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}

		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("file exceeds the %d row limit", maxRows)
		}

		row := Row{}
		for i, value := range record {
			if i >= len(keys) {
				break
			}
			row[keys[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return h
}
