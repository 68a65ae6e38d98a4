package persist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditSeverity(t *testing.T) {
	tests := []struct {
		action AuditAction
		want   AuditSeverity
	}{
		{ActionRowSave, SeverityMedium},
		{ActionRowDelete, SeverityHigh},
		{ActionTableReset, SeverityCritical},
		{AuditAction("other"), SeverityLow},
	}
	for _, tt := range tests {
		if got := auditSeverity(tt.action); got != tt.want {
			t.Errorf("auditSeverity(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestAuditLog_Log(t *testing.T) {
	db := newFakeDB()
	entry, err := NewAuditLog(db).Log(context.Background(), AuditParams{
		Action:  ActionRowSave,
		Table:   "people",
		RowKey:  "a",
		RowData: map[string]any{"name": "Ann"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, SeverityMedium, entry.Severity)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), entry.CreatedAt)

	args := db.queries[0].args
	assert.Equal(t, entry.ID, args[0])
	assert.Equal(t, "people", args[3])
	assert.JSONEq(t, `{"name":"Ann"}`, string(args[5].([]byte)))
}

func TestAuditLog_List(t *testing.T) {
	db := newFakeDB()
	db.responders["SELECT COALESCE(jsonb_agg(to_jsonb(e)"] = func([]any) ([]any, error) {
		return []any{[]byte(`[
			{"id":"1","action":"row_delete","severity":"high","table_name":"people","row_key":"a",
			 "row_data":null,"rows_affected":null,"reason":null,"created_at":"2025-01-02T03:04:05.123456+00:00"},
			{"id":"2","action":"table_reset","severity":"critical","table_name":"people","row_key":null,
			 "row_data":null,"rows_affected":4,"reason":"cli","created_at":"2025-01-01T00:00:00+00:00"}
		]`)}, nil
	}

	entries, err := NewAuditLog(db).List(context.Background(), AuditFilter{Table: "people", Limit: 10})

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].RowKey)
	assert.Equal(t, ActionRowDelete, entries[0].Action)
	assert.Equal(t, 4, entries[1].RowsAffected)
	assert.Equal(t, "cli", entries[1].Reason)
	assert.Empty(t, entries[1].RowKey)

	args := db.queries[0].args
	assert.Equal(t, "people", args[0])
	assert.Equal(t, 10, args[3])
	assert.Equal(t, 0, args[4])
}

func TestListAuditQuery(t *testing.T) {
	query, args := listAuditQuery(AuditFilter{Action: ActionRowSave, Severity: SeverityMedium})

	assert.Contains(t, query, "WHERE action = $1 AND severity = $2 AND created_at >= $3 AND created_at <= $4")
	assert.True(t, strings.Contains(query, "LIMIT $5 OFFSET $6"), query)
	require.Len(t, args, 6)
	assert.Equal(t, DefaultAuditLimit, args[4])
}
