package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure goes through respondError, which:
//  1. maps the error to a user message via core.MapError
//  2. picks the status code from the error type (statusFor)
//  3. logs the technical error with the request ID
//  4. writes JSON, or an HTML alert for fragment requests
//
// Validation failures also carry their structured result under "details"
// so a client can highlight the failing cells.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/importer"
	"github.com/JonMunkholm/gridform/internal/logging"
	"github.com/JonMunkholm/gridform/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// errBadRequest marks client input errors. Its text is shown to the client.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return errBadRequest{msg: msg} }

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var (
		bad     errBadRequest
		rowErr  *core.RowError
		allErr  *core.ValidateAllError
		formErr *core.FormValidateError
		opsErr  *core.ActiveOperationsError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &rowErr):
		if rowErr.Other != nil {
			return http.StatusInternalServerError
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &allErr), errors.As(err, &formErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &opsErr):
		return http.StatusConflict
	case errors.Is(err, core.ErrRowNotFound), errors.Is(err, core.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errPersistenceDisabled), errors.Is(err, importer.ErrTooManyImports):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorDetails extracts the structured payload of validation failures.
func errorDetails(err error) any {
	var (
		rowErr  *core.RowError
		allErr  *core.ValidateAllError
		formErr *core.FormValidateError
		opsErr  *core.ActiveOperationsError
	)
	switch {
	case errors.As(err, &rowErr):
		if rowErr.Other == nil {
			return rowErr.Failure()
		}
	case errors.As(err, &allErr):
		return allErr.Result
	case errors.As(err, &formErr):
		return formErr.Result
	case errors.As(err, &opsErr):
		return opsErr.Ops
	}
	return nil
}

// respondError logs err and writes a user-facing error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	var bad errBadRequest
	if errors.As(err, &bad) {
		msg = core.UserMessage{Message: bad.msg, Action: "Check the request and try again", Code: "REQ400"}
	}
	if errors.Is(err, importer.ErrTooManyImports) {
		msg = core.UserMessage{Message: "Too many imports are running", Action: "Try again in a few seconds", Code: "IMP001"}
		w.Header().Set("Retry-After", "5")
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err)
	}

	if isFragment(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Details: errorDetails(err),
	})
}

// isFragment reports whether the client asked for HTML, as htmx does.
func isFragment(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v and validates its struct tags.
// An empty body leaves v at its zero value.
func (s *Server) decodeJSON(r *http.Request, v any) error {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return badRequest("invalid JSON body: " + err.Error())
		}
	}
	if err := s.validate.Struct(v); err != nil {
		return badRequest(validationMessage(err))
	}
	return nil
}

// validationMessage renders validator errors as one line per field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
