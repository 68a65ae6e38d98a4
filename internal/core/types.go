package core

import "fmt"

// DefaultKeyField is the primary-key field used when a store is created
// without WithKeyField.
const DefaultKeyField = "rowId"

// Row is one table row: field name to value.
type Row map[string]any

// OperationStatus marks a row that is under an unsaved add or edit.
type OperationStatus string

const (
	StatusNone OperationStatus = ""
	StatusAdd  OperationStatus = "add"
	StatusEdit OperationStatus = "edit"
)

// ChangeKind describes how the row list changed for OnRowListChanged hooks.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeDelete ChangeKind = "delete"
)

// RowListChangedFunc receives the current ordered key-only row list, the
// affected key and the kind of change.
type RowListChangedFunc func(list []Row, key string, kind ChangeKind)

// RowDeletedFunc receives the key of a removed row.
type RowDeletedFunc func(key string)

// RowSavedFunc receives a copy of a row after a successful Save.
type RowSavedFunc func(key string, row Row)

// ActiveOperations partitions keys by their operation status.
type ActiveOperations struct {
	Edit []string `json:"edit"`
	Add  []string `json:"add"`
}

// Any reports whether any key is mid-add or mid-edit.
func (a ActiveOperations) Any() bool {
	return len(a.Edit) > 0 || len(a.Add) > 0
}

// RowFailure holds the validation outcome of one failed row.
// Other is set when validation could not run (rule resolution failed,
// the engine returned an error or panicked); Errors and Fields are then empty.
type RowFailure struct {
	Errors []ValidationError            `json:"errors"`
	Fields map[string][]ValidationError `json:"fields"`
	Other  error                        `json:"-"`
}

// ValidateAllOptions selects what Store.ValidateAll checks.
type ValidateAllOptions struct {
	RowKeys []string // empty: every row
	Fields  []string // empty: every field with rules

	// AllowErrors returns row failures in the result instead of as an error.
	AllowErrors bool

	// RequireNoActiveOps fails without validating anything when any row of
	// the table is mid-add or mid-edit, including rows outside RowKeys.
	RequireNoActiveOps bool
}

// ValidateAllResult separates valid rows from failed ones.
type ValidateAllResult struct {
	ErrorInfo   map[string]RowFailure `json:"errorInfo"`
	DataList    []Row                 `json:"dataList"`
	IsErrorInfo bool                  `json:"isErrorInfo"`
}

// FormValidateOptions selects what Form.ValidateAll checks.
type FormValidateOptions struct {
	Names       []string // empty: every registered table
	RowKeys     []string
	Fields      []string
	AllowErrors bool
}

// TableNotFound reports a requested table name with no registered store.
type TableNotFound struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// TableResult is a per-table ValidateAll outcome tagged with its name.
type TableResult struct {
	Name string `json:"name"`
	*ValidateAllResult
}

// FormValidateResult partitions tables by validation outcome.
type FormValidateResult struct {
	NameToNotFound    []TableNotFound `json:"nameToNotFound"`
	NameToErrorInfo   []TableResult   `json:"nameToErrorInfo"`
	NameToSuccessInfo []TableResult   `json:"nameToSuccessInfo"`
}

// keyString renders a primary-key value as a map key.
func keyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
