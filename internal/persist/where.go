package persist

import (
	"fmt"
	"strings"
)

// WhereBuilder assembles a parameterized WHERE clause. Column names are
// trusted input; values always go through placeholders.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder creates an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n". Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddTimestampRange appends an inclusive range on column.
func (wb *WhereBuilder) AddTimestampRange(column string, start, end any) {
	wb.conditions = append(wb.conditions,
		fmt.Sprintf("%s >= $%d", column, wb.argIndex),
		fmt.Sprintf("%s <= $%d", column, wb.argIndex+1),
	)
	wb.args = append(wb.args, start, end)
	wb.argIndex += 2
}

// NextArgIndex returns the placeholder number the next argument will use.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns " WHERE ..." and its arguments, or "" and nil when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
