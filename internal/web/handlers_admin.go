package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridform/internal/persist"
)

// errPersistenceDisabled is returned by endpoints that need a database.
var errPersistenceDisabled = errors.New("persistence is not configured")

const auditPageSize = persist.DefaultAuditLimit

type resetRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// handleReset restores a table to its seed rows.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	reason, err := s.resetReason(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.resetter.Reset(r.Context(), store.Name(), reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResetAll restores every table to its seed rows.
func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	reason, err := s.resetReason(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	results, err := s.resetter.ResetAll(r.Context(), reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) resetReason(r *http.Request) (string, error) {
	var req resetRequest
	if err := s.decodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.Reason == "" {
		return "api", nil
	}
	return req.Reason, nil
}

// handleAudit lists audit entries for a table, newest first. Query
// parameters: action, severity, from and to (YYYY-MM-DD), page.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	store, _, err := s.lookup(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.repo == nil {
		s.respondError(w, r, errPersistenceDisabled)
		return
	}

	q := r.URL.Query()
	page := parseIntParam(r, "page", 1)
	filter := persist.AuditFilter{
		Table:    store.Name(),
		Action:   persist.AuditAction(q.Get("action")),
		Severity: persist.AuditSeverity(q.Get("severity")),
		Limit:    auditPageSize,
		Offset:   (page - 1) * auditPageSize,
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			s.respondError(w, r, badRequest("from must be YYYY-MM-DD"))
			return
		}
		filter.StartTime = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			s.respondError(w, r, badRequest("to must be YYYY-MM-DD"))
			return
		}
		filter.EndTime = t.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := s.repo.Audit().List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   store.Name(),
		"page":    page,
		"entries": entries,
	})
}
