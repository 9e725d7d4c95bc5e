package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBatchParse marks a file that could not be read as CSV at all. Unlike
// per-row failures it aborts the whole batch.
var ErrBatchParse = errors.New("import file could not be parsed")

// Row is one CSV record keyed by header name. Values are trimmed.
type Row map[string]string

// get returns the first non-empty value among the named columns. Dialects
// disagree on header casing, so lookups usually pass both variants.
func (r Row) get(keys ...string) string {
	for _, k := range keys {
		if v := r[k]; v != "" {
			return v
		}
	}
	return ""
}

// readRows parses the CSV into header-keyed rows. Any parse error, including
// an empty file or a record with the wrong field count, is wrapped in
// ErrBatchParse.
func readRows(r io.Reader) (header []string, rows []Row, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBatchParse, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: file is empty", ErrBatchParse)
	}

	header = records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows = make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, field := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(field)
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
