package core

// validation.go defines the error values produced by row validation.
//
// Validation failures are data, not faults: a failed row carries its
// per-field messages in a RowError, batch calls collect RowFailures per key,
// and only the caller decides whether a failure aborts anything.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrRowNotFound is returned when an operation names a key with no row.
	ErrRowNotFound = errors.New("row not found")

	// ErrTableNotFound is returned when a form has no store under a name.
	ErrTableNotFound = errors.New("table not found")
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// RowError is returned by Validate and Save when a row fails.
type RowError struct {
	Key    string
	Errors []ValidationError
	Fields map[string][]ValidationError
	Other  error
}

func (e *RowError) Error() string {
	if e.Other != nil {
		return fmt.Sprintf("row %s: validation did not run: %v", e.Key, e.Other)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return fmt.Sprintf("row %s: validation failed: %s", e.Key, strings.Join(msgs, "; "))
}

func (e *RowError) Unwrap() error {
	return e.Other
}

// Failure converts the error into the shape stored in ValidateAllResult.
func (e *RowError) Failure() RowFailure {
	if e.Other != nil {
		return RowFailure{Errors: []ValidationError{}, Fields: map[string][]ValidationError{}, Other: e.Other}
	}
	return RowFailure{Errors: e.Errors, Fields: e.Fields}
}

// ValidateAllError is returned by Store.ValidateAll when rows failed and
// AllowErrors was not set. Result holds the full outcome, successes included.
type ValidateAllError struct {
	Table  string
	Result *ValidateAllResult
}

func (e *ValidateAllError) Error() string {
	keys := make([]string, 0, len(e.Result.ErrorInfo))
	for k := range e.Result.ErrorInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("table %s: validation failed for %d row(s): %s",
		e.Table, len(keys), strings.Join(keys, ", "))
}

// ActiveOperationsError is returned by ValidateAll with RequireNoActiveOps
// when any selected row is mid-add or mid-edit.
type ActiveOperationsError struct {
	Table string
	Ops   ActiveOperations
}

func (e *ActiveOperationsError) Error() string {
	return fmt.Sprintf("table %s: rows have unsaved operations (edit: %d, add: %d)",
		e.Table, len(e.Ops.Edit), len(e.Ops.Add))
}

// FormValidateError is returned by Form.ValidateAll when any table failed
// and AllowErrors was not set.
type FormValidateError struct {
	Result *FormValidateResult
}

func (e *FormValidateError) Error() string {
	names := make([]string, 0, len(e.Result.NameToErrorInfo))
	for _, r := range e.Result.NameToErrorInfo {
		names = append(names, r.Name)
	}
	return fmt.Sprintf("validation failed for table(s): %s", strings.Join(names, ", "))
}

// groupByField indexes validation errors by field name.
func groupByField(errs []ValidationError) map[string][]ValidationError {
	out := make(map[string][]ValidationError)
	for _, e := range errs {
		out[e.Field] = append(out[e.Field], e)
	}
	return out
}
