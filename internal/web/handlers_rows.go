package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/logging"
	"github.com/JonMunkholm/gridform/internal/schema"
)

type addRowRequest struct {
	Values map[string]any `json:"values"`
}

type updateRowRequest struct {
	Values map[string]any `json:"values" validate:"required,min=1"`
	// Validate runs background validation of the changed fields (default true).
	Validate *bool `json:"validate"`
	// Sync validates before responding; Fields narrows what is checked.
	Sync   bool     `json:"sync"`
	Fields []string `json:"fields" validate:"omitempty,dive,required"`
}

type cancelResponse struct {
	Key      string               `json:"key"`
	Previous core.OperationStatus `json:"previous"`
}

// normalize cleans incoming values with the table's field types.
func normalize(table *schema.Table, values map[string]any) core.Row {
	if table == nil {
		return core.Row(values)
	}
	return table.Normalize(core.Row(values))
}

// handleAddRow starts an add operation on a new row.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	store, table, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req addRowRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	key, row := store.BeginAdd(normalize(table, req.Values))
	logging.WithFields(r.Context(), "table", store.Name(), "key", key).Debug("add started")
	writeJSON(w, http.StatusCreated, rowResponse{Key: key, Row: row, Status: core.StatusAdd})
}

// handleUpdateRow merges values into a row, creating it when missing.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	store, table, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req updateRowRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	key := chi.URLParam(r, "key")
	values := normalize(table, req.Values)
	if req.Sync {
		if _, err := store.UpdateRowValidated(r.Context(), key, values, req.Fields); err != nil {
			s.respondError(w, r, err)
			return
		}
	} else {
		store.UpdateRow(key, values, req.Validate == nil || *req.Validate)
	}

	row, _ := store.Row(key)
	writeJSON(w, http.StatusOK, rowResponse{Key: key, Row: row, Errors: store.Errors(key), Status: store.Status(key)})
}

// handleRemoveRow deletes a row and runs the removal hooks.
func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if _, ok := store.Row(key); !ok {
		s.respondError(w, r, rowNotFound(key))
		return
	}

	store.RemoveRow(key)
	logging.WithFields(r.Context(), "table", store.Name(), "key", key).Info("row removed")
	w.WriteHeader(http.StatusNoContent)
}

// handleBeginEdit snapshots a row and marks it under edit.
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := store.BeginEdit(key); err != nil {
		s.respondError(w, r, err)
		return
	}
	row, _ := store.Row(key)
	writeJSON(w, http.StatusOK, rowResponse{Key: key, Row: row, Errors: store.Errors(key), Status: store.Status(key)})
}

// handleSave validates a row and ends its operation.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := store.Save(r.Context(), key); err != nil {
		s.respondError(w, r, err)
		return
	}
	row, _ := store.Row(key)
	logging.WithFields(r.Context(), "table", store.Name(), "key", key).Info("row saved")
	writeJSON(w, http.StatusOK, rowResponse{Key: key, Row: row})
}

// handleCancel rolls back an edit or discards an added row.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if _, ok := store.Row(key); !ok && store.Status(key) == core.StatusNone {
		s.respondError(w, r, rowNotFound(key))
		return
	}
	prev := store.CancelOperation(key)
	writeJSON(w, http.StatusOK, cancelResponse{Key: key, Previous: prev})
}
