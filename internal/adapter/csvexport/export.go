// Package csvexport streams decoded result pages into a CSV file.
//
// The quoting rule is kept exactly as downstream consumers expect it:
// cells in String columns are double-quoted with embedded quotes doubled,
// and every other cell is rendered by plain stringification. Values of a
// non-string type that land in a String column are stringified and then
// quoted without escaping. This is not RFC 4180 and must not be "fixed".
package csvexport

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"qlmodel/internal/adapter/bqrs"
	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

// Canonical name of the primary result set.
const selectSetName = "#select"

// Exporter writes one result set to CSV, page by page.
type Exporter struct {
	pageSize int
}

// New creates an exporter decoding pageSize rows per page.
func New(pageSize int) *Exporter {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Exporter{pageSize: pageSize}
}

// Export writes the primary result set of reader to path. It returns
// false with no error (and writes nothing) when the file holds zero
// result sets. Output goes to a temporary sibling first and is renamed on
// completion, so cancellation or failure leaves no partial file behind.
func (e *Exporter) Export(ctx context.Context, reader *bqrs.Reader, path string, progress port.ProgressSink) (bool, error) {
	names := reader.ResultSets()
	if len(names) == 0 {
		return false, nil
	}
	if progress == nil {
		progress = port.NopProgress
	}

	name := pickResultSet(names)
	_, totalRows, err := reader.Schema(name)
	if err != nil {
		return false, err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if f != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	written := 0
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		chunk, err := reader.Decode(name, offset, e.pageSize)
		if err != nil {
			return false, fmt.Errorf("decode page at row %d: %w", offset, err)
		}
		for _, tuple := range chunk.Tuples {
			if _, err := w.WriteString(formatRow(chunk.Columns, tuple)); err != nil {
				return false, fmt.Errorf("write row: %w", err)
			}
			written++
		}
		progress.Progress(written, totalRows, "Exporting results")

		if chunk.NextPageOffset == nil {
			break
		}
		offset = *chunk.NextPageOffset
	}

	if err := w.Flush(); err != nil {
		return false, fmt.Errorf("flush export file: %w", err)
	}
	if err := f.Close(); err != nil {
		f = nil
		os.Remove(tmp)
		return false, fmt.Errorf("close export file: %w", err)
	}
	f = nil
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("finalize export file: %w", err)
	}
	return true, nil
}

// pickResultSet prefers the canonical select set, falling back to the
// first set in the file.
func pickResultSet(names []string) string {
	for _, n := range names {
		if n == selectSetName || n == "select" {
			return n
		}
	}
	return names[0]
}

func formatRow(columns []domain.Column, tuple []domain.Value) string {
	cells := make([]string, len(tuple))
	for i, v := range tuple {
		kind := v.Kind
		if i < len(columns) {
			kind = columns[i].Kind
		}
		cells[i] = formatCell(kind, v)
	}
	return strings.Join(cells, ",") + "\n"
}

// formatCell quotes iff the column kind is String; everything else is
// plain stringification.
func formatCell(columnKind domain.ColumnKind, v domain.Value) string {
	if columnKind == domain.KindString {
		return `"` + strings.ReplaceAll(stringify(v), `"`, `""`) + `"`
	}
	return stringify(v)
}

func stringify(v domain.Value) string {
	switch v.Kind {
	case domain.KindString:
		return v.Str
	case domain.KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case domain.KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case domain.KindBoolean:
		return strconv.FormatBool(v.Bool)
	case domain.KindEntity:
		return v.Entity.Label
	default:
		return ""
	}
}
