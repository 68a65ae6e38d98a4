package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/schema"
	"github.com/JonMunkholm/gridform/internal/web/templates"
)

// tableInfo describes a registered table for GET /api/tables.
type tableInfo struct {
	Name        string                `json:"name"`
	KeyField    string                `json:"keyField"`
	Fields      []fieldInfo           `json:"fields"`
	Rows        int                   `json:"rows"`
	Initialized bool                  `json:"initialized"`
	Active      core.ActiveOperations `json:"active"`
}

type fieldInfo struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type rowsResponse struct {
	Table    string                          `json:"table"`
	KeyField string                          `json:"keyField"`
	Rows     []core.Row                      `json:"rows"`
	Errors   map[string]map[string][]string  `json:"errors"`
	Status   map[string]core.OperationStatus `json:"status"`
}

type rowResponse struct {
	Key    string               `json:"key"`
	Row    core.Row             `json:"row"`
	Errors map[string][]string  `json:"errors,omitempty"`
	Status core.OperationStatus `json:"status,omitempty"`
}

// lookup resolves the {table} URL parameter. The schema table is nil when
// the store was registered without one.
func (s *Server) lookup(r *http.Request) (*core.Store, *schema.Table, error) {
	name := chi.URLParam(r, "table")
	store, err := s.form.MustStore(name)
	if err != nil {
		return nil, nil, err
	}
	var table *schema.Table
	if s.schema != nil {
		table, _ = s.schema.Table(name)
	}
	return store, table, nil
}

func rowNotFound(key string) error {
	return fmt.Errorf("%w: %s", core.ErrRowNotFound, key)
}

// handleHealth reports liveness and the number of registered tables.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"tables":      len(s.form.Names()),
		"persistence": s.repo != nil,
		"imports":     s.imports.Status(),
	})
}

// handleListTables returns every registered table with its fields.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	names := s.form.Names()
	out := make([]tableInfo, 0, len(names))
	for _, name := range names {
		store, ok := s.form.Store(name)
		if !ok {
			continue
		}
		ops, _ := store.HasActiveOperations()
		info := tableInfo{
			Name:        name,
			KeyField:    store.KeyField(),
			Rows:        store.Len(),
			Initialized: store.Initialized(),
			Active:      ops,
		}
		info.Fields = s.fieldsOf(name, store)
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// fieldsOf describes a table's fields from its schema, or from the store's
// rule fields when there is none.
func (s *Server) fieldsOf(name string, store *core.Store) []fieldInfo {
	if s.schema != nil {
		if table, ok := s.schema.Table(name); ok {
			fields := make([]fieldInfo, 0, len(table.Fields))
			for _, f := range table.Fields {
				typ := string(f.Type)
				if typ == "" {
					typ = string(schema.FieldText)
				}
				fields = append(fields, fieldInfo{Name: f.Name, Label: f.DisplayName(), Type: typ, Required: f.Required})
			}
			return fields
		}
	}
	ruleFields := store.RuleFields()
	fields := make([]fieldInfo, 0, len(ruleFields))
	for _, f := range ruleFields {
		fields = append(fields, fieldInfo{Name: f, Label: f, Type: string(schema.FieldText)})
	}
	return fields
}

// handleListRows returns the rows of a table with their errors and status.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		Table:    store.Name(),
		KeyField: store.KeyField(),
		Rows:     store.Rows(),
		Errors:   store.AllErrors(),
		Status:   statusMap(store),
	})
}

func statusMap(store *core.Store) map[string]core.OperationStatus {
	ops, _ := store.HasActiveOperations()
	out := make(map[string]core.OperationStatus, len(ops.Edit)+len(ops.Add))
	for _, k := range ops.Edit {
		out[k] = core.StatusEdit
	}
	for _, k := range ops.Add {
		out[k] = core.StatusAdd
	}
	return out
}

// handleGetRow returns one row.
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	row, ok := store.Row(key)
	if !ok {
		s.respondError(w, r, rowNotFound(key))
		return
	}
	writeJSON(w, http.StatusOK, rowResponse{Key: key, Row: row, Errors: store.Errors(key), Status: store.Status(key)})
}

// handleTableView renders the table as an HTML fragment.
func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	fields := s.fieldsOf(store.Name(), store)
	view := templates.TableView{Name: store.Name()}
	for _, f := range fields {
		view.Columns = append(view.Columns, templates.Column{Name: f.Name, Label: f.Label, Required: f.Required})
	}

	errs := store.AllErrors()
	status := statusMap(store)
	for _, row := range store.Rows() {
		key := store.KeyOf(row)
		vr := templates.Row{Key: key, Status: string(status[key])}
		for _, f := range fields {
			vr.Cells = append(vr.Cells, templates.Cell{Value: cellText(row[f.Name]), Errors: errs[key][f.Name]})
		}
		view.Rows = append(view.Rows, vr)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Table(view).Render(r.Context(), w); err != nil {
		s.logger.Warn("render table view", "table", store.Name(), "error", err)
	}
}

// cellText formats a value for display. Whole floats print without a fraction.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(schema.DateLayout)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = cellText(e)
		}
		return fmt.Sprint(parts)
	}
	return fmt.Sprint(v)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
