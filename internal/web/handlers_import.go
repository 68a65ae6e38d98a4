package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/gridform/internal/importer"
)

const defaultMaxImportBytes = 10 << 20

// handleImport loads a CSV request body into a table. Query parameters:
// drop_invalid and commit (true/false). A text/csv Accept header returns
// the failed records instead of the JSON report.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	store, table, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if table == nil {
		s.respondError(w, r, badRequest("table has no schema to map CSV columns"))
		return
	}

	if err := s.imports.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.imports.Release()

	q := r.URL.Query()
	opts := importer.Options{
		DropInvalid: q.Get("drop_invalid") == "true",
		Commit:      q.Get("commit") == "true",
		Logger:      s.logger,
	}

	limit := s.cfg.Form.MaxImportBytes
	if limit <= 0 {
		limit = defaultMaxImportBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	rep, err := importer.Import(r.Context(), store, table, body, opts)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.respondError(w, r, badRequest("CSV exceeds the upload limit"))
		case errors.Is(err, importer.ErrHeaderNotFound):
			s.respondError(w, r, badRequest("no header row naming the required columns was found"))
		default:
			s.respondError(w, r, err)
		}
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+store.Name()+`_failed.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := rep.WriteFailed(w); err != nil {
			s.logger.Warn("write failed records", "table", store.Name(), "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleExport streams every row of a table as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	store, table, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if table == nil {
		s.respondError(w, r, badRequest("table has no schema to name CSV columns"))
		return
	}

	filename := fmt.Sprintf("%s_%s.csv", store.Name(), time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	n, err := importer.Export(w, store, table)
	if err != nil {
		// Headers are already sent.
		s.logger.Warn("export interrupted", "table", store.Name(), "rows", n, "error", err)
	}
}

// handleTemplate returns the CSV header an import of the table expects.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	store, table, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if table == nil {
		s.respondError(w, r, badRequest("table has no schema to name CSV columns"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, store.Name()))
	if err := importer.WriteTemplate(w, store, table); err != nil {
		s.logger.Warn("write template", "table", store.Name(), "error", err)
	}
}
