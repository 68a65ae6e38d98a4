package web

import (
	"net/http"

	"github.com/JonMunkholm/gridform/internal/core"
)

type validateTableRequest struct {
	RowKeys            []string `json:"rowKeys" validate:"omitempty,dive,required"`
	Fields             []string `json:"fields" validate:"omitempty,dive,required"`
	AllowErrors        bool     `json:"allowErrors"`
	RequireNoActiveOps bool     `json:"requireNoActiveOps"`
}

type validateFormRequest struct {
	Names       []string `json:"names" validate:"omitempty,dive,required"`
	RowKeys     []string `json:"rowKeys" validate:"omitempty,dive,required"`
	Fields      []string `json:"fields" validate:"omitempty,dive,required"`
	AllowErrors bool     `json:"allowErrors"`
}

// handleValidateTable validates the selected rows of one table. Failed rows
// are reported with 422 unless allowErrors is set.
func (s *Server) handleValidateTable(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req validateTableRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := store.ValidateAll(r.Context(), core.ValidateAllOptions{
		RowKeys:            req.RowKeys,
		Fields:             req.Fields,
		AllowErrors:        req.AllowErrors,
		RequireNoActiveOps: req.RequireNoActiveOps,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleValidateForm validates several tables at once.
func (s *Server) handleValidateForm(w http.ResponseWriter, r *http.Request) {
	var req validateFormRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.form.ValidateAll(r.Context(), core.FormValidateOptions{
		Names:       req.Names,
		RowKeys:     req.RowKeys,
		Fields:      req.Fields,
		AllowErrors: req.AllowErrors,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
