// Package importer loads CSV files into table stores.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/schema"
)

// MaxHeaderSearchRows is the maximum number of records scanned for the header.
var MaxHeaderSearchRows = 20

// ContextCheckInterval is how often (in records) cancellation is checked.
var ContextCheckInterval = 100

// ErrHeaderNotFound is returned when no record in the first
// MaxHeaderSearchRows names every required field.
var ErrHeaderNotFound = errors.New("header row not found")

// Options controls what happens to imported rows.
type Options struct {
	// DropInvalid removes inserted rows that fail validation and rolls
	// updated rows back to their values before the import.
	DropInvalid bool

	// Commit saves every valid imported row, which runs OnRowSaved hooks.
	Commit bool

	Logger *slog.Logger
}

// Failure is one CSV record that was not imported cleanly.
type Failure struct {
	Line   int      `json:"line"`
	Key    string   `json:"key,omitempty"`
	Reason string   `json:"reason"`
	Record []string `json:"record"`
}

// Report summarizes an import.
type Report struct {
	Table    string    `json:"table"`
	Header   []string  `json:"header"`
	Inserted int       `json:"inserted"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Valid    int       `json:"valid"`
	Dropped  int       `json:"dropped"`
	Restored int       `json:"restored"`
	Saved    int       `json:"saved"`
	Failed   []Failure `json:"failed"`
}

// Import reads CSV records from r into store. The header row is located by
// matching field names or labels; records before it are ignored. A record
// whose key column is filled updates that row, otherwise a new row is added.
// Updated rows are marked edit with a snapshot of their previous values,
// so an update that is neither committed nor dropped can still be cancelled.
// Imported rows are then validated together and failures are reported.
func Import(ctx context.Context, store *core.Store, table *schema.Table, r io.Reader, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rep := &Report{Table: store.Name(), Failed: []Failure{}}

	header, columns, err := findHeader(cr, table, store.KeyField())
	if err != nil {
		return nil, err
	}
	rep.Header = header

	var keys []string
	inserted := make(map[string]bool)
	editing := make(map[string]bool)
	lines := make(map[string]int)
	records := make(map[string][]string)

	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return rep, fmt.Errorf("import cancelled: %w", err)
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rep.Failed = append(rep.Failed, Failure{Line: pe.Line, Reason: pe.Err.Error(), Record: record})
				continue
			}
			return rep, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		sanitize(record)

		if isEmptyRow(record) {
			rep.Skipped++
			continue
		}

		values := make(core.Row, len(columns))
		for idx, name := range columns {
			if name == "" || idx >= len(record) {
				continue
			}
			values[name] = schema.CleanCell(record[idx])
		}
		values = table.Normalize(values)

		key := store.KeyOf(values)
		switch _, exists := store.Row(key); {
		case key == "":
			delete(values, store.KeyField())
			key, _ = store.AddRow(values)
			inserted[key] = true
			rep.Inserted++
		case !exists:
			store.UpdateRow(key, values, false)
			inserted[key] = true
			rep.Inserted++
		default:
			if !inserted[key] && !editing[key] && store.Status(key) == core.StatusNone {
				if err := store.BeginEdit(key); err == nil {
					editing[key] = true
				}
			}
			store.UpdateRow(key, values, false)
			rep.Updated++
		}

		if _, seen := lines[key]; !seen {
			keys = append(keys, key)
		}
		lines[key] = line
		records[key] = record
	}

	if len(keys) == 0 {
		return rep, nil
	}

	res, err := store.ValidateAll(ctx, core.ValidateAllOptions{RowKeys: keys, AllowErrors: true})
	if err != nil {
		return rep, fmt.Errorf("validate imported rows: %w", err)
	}

	for _, key := range keys {
		failure, failed := res.ErrorInfo[key]
		if !failed {
			rep.Valid++
			if opts.Commit {
				if err := store.Save(ctx, key); err != nil {
					rep.Failed = append(rep.Failed, Failure{Line: lines[key], Key: key, Reason: err.Error(), Record: records[key]})
					continue
				}
				rep.Saved++
			}
			continue
		}

		rep.Failed = append(rep.Failed, Failure{Line: lines[key], Key: key, Reason: reason(failure), Record: records[key]})
		if !opts.DropInvalid {
			continue
		}
		if inserted[key] {
			store.DeleteRow(key)
			rep.Dropped++
		} else if editing[key] {
			store.CancelOperation(key)
			rep.Restored++
		}
	}

	logger.Info("csv imported",
		"table", rep.Table,
		"inserted", rep.Inserted,
		"updated", rep.Updated,
		"valid", rep.Valid,
		"failed", len(rep.Failed),
	)
	return rep, nil
}

// WriteFailed writes the failed records as CSV with a leading Status column.
func (rep *Report) WriteFailed(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Status"}, rep.Header...)); err != nil {
		return err
	}
	for _, f := range rep.Failed {
		if err := cw.Write(append([]string{f.Reason}, f.Record...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// findHeader reads records until one names every required field and
// returns it with the field name of each column ("" for unknown columns).
func findHeader(cr *csv.Reader, table *schema.Table, keyField string) ([]string, []string, error) {
	lookup := make(map[string]string)
	for _, f := range table.Fields {
		lookup[strings.ToLower(f.Name)] = f.Name
		lookup[strings.ToLower(f.DisplayName())] = f.Name
	}
	lookup[strings.ToLower(keyField)] = keyField

	for i := 0; i < MaxHeaderSearchRows; i++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read header: %w", err)
		}
		sanitize(record)

		columns := make([]string, len(record))
		found := make(map[string]bool)
		for idx, cell := range record {
			if name, ok := lookup[strings.ToLower(schema.CleanCell(cell))]; ok {
				columns[idx] = name
				found[name] = true
			}
		}
		if len(found) > 0 && hasRequired(table, found) {
			return append([]string(nil), record...), columns, nil
		}
	}
	return nil, nil, ErrHeaderNotFound
}

func hasRequired(table *schema.Table, found map[string]bool) bool {
	for _, f := range table.Fields {
		if f.Required && !found[f.Name] {
			return false
		}
	}
	return true
}

func reason(f core.RowFailure) string {
	if f.Other != nil {
		return f.Other.Error()
	}
	msgs := make([]string, 0, len(f.Errors))
	for _, e := range f.Errors {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sanitize replaces invalid UTF-8 in each cell with U+FFFD.
func sanitize(record []string) {
	for i, v := range record {
		if !utf8.ValidString(v) {
			record[i] = strings.ToValidUTF8(v, "�")
		}
	}
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
