// error_messages.go
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Codes are grouped by category:
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Row not found: The row does not exist in this table
//	         Action: Reload the table; the row may have been removed
//	         Matches: ErrRowNotFound
//
//	ROW002 - Unsaved rows: Some rows are still being added or edited
//	         Action: Save or cancel the open rows first
//	         Matches: *ActiveOperationsError
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Validation failed: One or more fields are invalid
//	         Action: Fix the highlighted fields and try again
//	         Matches: *RowError, *ValidateAllError, *FormValidateError
//
//	VAL002 - Validation unavailable: Rules could not be evaluated
//	         Action: Please try again or contact support
//	         Matches: *RowError with Other set
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found: The table is not registered on this form
//	         Action: Verify the table name is correct
//	         Matches: ErrTableNotFound, "table not found"
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled       Patterns: "context canceled"
//	REQ002 - Request timeout         Patterns: "context deadline exceeded"
//	RATE001 - Rate limited           Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original error.
//
// # Matching
//
// Typed errors are matched first with errors.Is / errors.As. Remaining
// errors are matched case-insensitively against patterns with
// strings.Contains; the first match wins.

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgRowNotFound = UserMessage{
		Message: "Row not found",
		Action:  "Reload the table; the row may have been removed",
		Code:    "ROW001",
	}
	msgActiveOps = UserMessage{
		Message: "Some rows are still being added or edited",
		Action:  "Save or cancel the open rows first",
		Code:    "ROW002",
	}
	msgValidation = UserMessage{
		Message: "One or more fields are invalid",
		Action:  "Fix the highlighted fields and try again",
		Code:    "VAL001",
	}
	msgValidationUnavailable = UserMessage{
		Message: "Validation rules could not be evaluated",
		Action:  "Please try again or contact support",
		Code:    "VAL002",
	}
	msgTableNotFound = UserMessage{
		Message: "Table not found",
		Action:  "Verify the table name is correct",
		Code:    "TBL001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ002",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that arrive as plain strings, mostly from the
// database driver. Order matters: specific before general.
var errorPatterns = []errorPattern{
	{
		pattern: "table not found",
		msg:     msgTableNotFound,
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg:     msgDeadline,
	},
	{
		pattern: "context canceled",
		msg:     msgCancelled,
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := fmt.Errorf("%w: 17_ab12", ErrRowNotFound)
//	msg := MapError(err)
//	// msg.Code == "ROW001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var rowErr *RowError
	var allErr *ValidateAllError
	var formErr *FormValidateError
	var opsErr *ActiveOperationsError
	switch {
	case errors.As(err, &rowErr):
		if rowErr.Other != nil {
			return msgValidationUnavailable
		}
		return msgValidation
	case errors.As(err, &allErr), errors.As(err, &formErr):
		return msgValidation
	case errors.As(err, &opsErr):
		return msgActiveOps
	case errors.Is(err, ErrRowNotFound):
		return msgRowNotFound
	case errors.Is(err, ErrTableNotFound):
		return msgTableNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	case errors.Is(err, context.Canceled):
		return msgCancelled
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
