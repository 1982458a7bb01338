package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
)

// ErrEmpty is returned for content without a single data line.
var ErrEmpty = errors.New("CSV file is empty or contains no valid data")

// Records is a parsed table. Header is nil for headerless files. Every row
// has exactly as many cells as the first line had (after dropped columns).
type Records struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of column in Header, or -1.
func (r Records) Index(column string) int {
	for i, h := range r.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// Cell returns the value of column in row, or "" when either is missing.
func (r Records) Cell(row []string, column string) string {
	i := r.Index(column)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Load fetches file through its loader and parses it.
func Load(ctx context.Context, file loader.TableFile) (Records, error) {
	raw, err := file.GetBytes(ctx)
	if err != nil {
		return Records{}, err
	}
	records, err := ParseCSV(raw, file.Headerless)
	if err != nil {
		return Records{}, fmt.Errorf("%s: %w", file.Name, err)
	}
	return records, nil
}

// ParseCSV parses spreadsheet CSV exports.
//
// Cells are sanitized and trimmed. Lines that cannot be parsed, lines with
// more cells than the first line, and blank lines are skipped; short lines
// are padded. With a header, columns whose name is empty or starts with
// "Unnamed" are dropped.
func ParseCSV(content []byte, headerless bool) (Records, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		out     Records
		keep    []int
		width   = -1
		skipped int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		for i := range record {
			record[i] = util.SanitizeCell(record[i])
		}

		if width < 0 {
			width = len(record)
			keep = make([]int, 0, width)
			if headerless {
				for i := range record {
					keep = append(keep, i)
				}
			} else {
				for i, h := range record {
					if h == "" || strings.HasPrefix(h, "Unnamed") {
						continue
					}
					keep = append(keep, i)
					out.Header = append(out.Header, h)
				}
				continue
			}
		}

		if len(record) > width {
			skipped++
			continue
		}
		if isBlank(record) {
			continue
		}

		row := make([]string, len(keep))
		for j, i := range keep {
			if i < len(record) {
				row[j] = record[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}

	if width < 0 || (headerless && len(out.Rows) == 0) {
		return Records{}, ErrEmpty
	}
	if skipped > 0 {
		logger.Debug("[CSV] Skipped bad lines", "count", skipped)
	}
	if out.Rows == nil {
		out.Rows = [][]string{}
	}

	return out, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}
