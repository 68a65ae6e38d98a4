package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/schema"
)

// flushInterval is how many rows are written between flushes.
const flushInterval = 1000

// Columns returns the CSV header for table: the key field, then each field
// label. Import accepts the result as a header row.
func Columns(store *core.Store, table *schema.Table) []string {
	cols := []string{store.KeyField()}
	for _, f := range table.Fields {
		if f.Name == store.KeyField() {
			continue
		}
		cols = append(cols, f.DisplayName())
	}
	return cols
}

// WriteTemplate writes only the header row.
func WriteTemplate(w io.Writer, store *core.Store, table *schema.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(store, table)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Export writes every row of store in row order, in the format Import reads.
// It returns the number of rows written.
func Export(w io.Writer, store *core.Store, table *schema.Table) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(store, table)); err != nil {
		return 0, err
	}

	fields := []string{store.KeyField()}
	for _, f := range table.Fields {
		if f.Name != store.KeyField() {
			fields = append(fields, f.Name)
		}
	}

	n := 0
	for _, row := range store.Rows() {
		record := make([]string, len(fields))
		for i, name := range fields {
			record[i] = FormatCell(row[name])
		}
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
		if n%flushInterval == 0 {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return n, err
			}
		}
	}
	cw.Flush()
	return n, cw.Error()
}

// FormatCell renders a cell value for CSV. Whole numbers drop their
// fraction and dates use schema.DateLayout.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.Format(schema.DateLayout)
	}
	return fmt.Sprint(v)
}
