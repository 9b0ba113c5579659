// Package intake reads score exports into plain records for the normalizer.
package intake

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format is an export encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Sentinel kinds for intake errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoHeader          = errors.New("csv export has no header row")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read decodes r in the given format.
func Read(r io.Reader, f Format) ([]map[string]any, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// DetectFormat picks a format from a content type or file name, falling back
// to sniffing the first non-blank byte of head.
func DetectFormat(contentType, name string, head []byte) Format {
	ct := strings.ToLower(contentType)
	lname := strings.ToLower(name)
	switch {
	case strings.Contains(ct, "csv"), strings.HasSuffix(lname, ".csv"):
		return FormatCSV
	case strings.Contains(ct, "json"), strings.HasSuffix(lname, ".json"):
		return FormatJSON
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// ReadCSV reads a header row followed by data rows. Cells are kept as strings;
// short rows leave their missing columns out of the record.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []map[string]any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		m := make(map[string]any, len(header))
		for i, cell := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			m[header[i]] = cell
		}
		out = append(out, m)
	}
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadJSON reads either an array of objects or an object with a "data" array.
// Numbers are kept as json.Number.
func ReadJSON(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var out []map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Data []map[string]any `json:"data"`
		}
		if err := decodeNumbers(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode json export: %w", err)
		}
		out = wrapped.Data
	} else if err := decodeNumbers(raw, &out); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	return out, nil
}

func decodeNumbers(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}
