package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionRowSave    AuditAction = "row_save"
	ActionRowDelete  AuditAction = "row_delete"
	ActionTableReset AuditAction = "table_reset"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditLimit is the page size when a filter sets none.
const DefaultAuditLimit = 50

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	Table        string         `json:"table"`
	RowKey       string         `json:"rowKey,omitempty"`
	RowData      map[string]any `json:"rowData,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditParams contains parameters for creating an audit log entry.
type AuditParams struct {
	Action       AuditAction
	Table        string
	RowKey       string
	RowData      map[string]any
	RowsAffected int
	Reason       string
}

// AuditFilter narrows an audit log query. Zero values match everything.
type AuditFilter struct {
	Table     string
	Action    AuditAction
	Severity  AuditSeverity
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// auditSeverity returns the appropriate severity for an action.
func auditSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionRowDelete:
		return SeverityHigh
	case ActionTableReset:
		return SeverityCritical
	case ActionRowSave:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AuditLog records row changes in gridform_audit.
type AuditLog struct {
	db DBTX
}

// NewAuditLog creates an audit log over db.
func NewAuditLog(db DBTX) *AuditLog {
	return &AuditLog{db: db}
}

const insertAuditSQL = `INSERT INTO gridform_audit
	(id, action, severity, table_name, row_key, row_data, rows_affected, reason)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, 0), NULLIF($8, ''))
	RETURNING created_at`

// Log writes an entry and returns it.
func (a *AuditLog) Log(ctx context.Context, p AuditParams) (*AuditEntry, error) {
	var rowData []byte
	if p.RowData != nil {
		var err error
		rowData, err = json.Marshal(p.RowData)
		if err != nil {
			rowData = nil // Fall back to nil if marshaling fails
		}
	}

	entry := &AuditEntry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     auditSeverity(p.Action),
		Table:        p.Table,
		RowKey:       p.RowKey,
		RowData:      p.RowData,
		RowsAffected: p.RowsAffected,
		Reason:       p.Reason,
	}

	err := a.db.QueryRow(ctx, insertAuditSQL,
		entry.ID, string(entry.Action), string(entry.Severity), entry.Table,
		entry.RowKey, rowData, int32(entry.RowsAffected), entry.Reason,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

// auditRow mirrors the jsonb form of a gridform_audit record.
type auditRow struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	Severity     string         `json:"severity"`
	TableName    string         `json:"table_name"`
	RowKey       *string        `json:"row_key"`
	RowData      map[string]any `json:"row_data"`
	RowsAffected *int           `json:"rows_affected"`
	Reason       *string        `json:"reason"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (r auditRow) entry() AuditEntry {
	e := AuditEntry{
		ID:        r.ID,
		Action:    AuditAction(r.Action),
		Severity:  AuditSeverity(r.Severity),
		Table:     r.TableName,
		RowData:   r.RowData,
		CreatedAt: r.CreatedAt,
	}
	if r.RowKey != nil {
		e.RowKey = *r.RowKey
	}
	if r.RowsAffected != nil {
		e.RowsAffected = *r.RowsAffected
	}
	if r.Reason != nil {
		e.Reason = *r.Reason
	}
	return e
}

// List returns matching entries, newest first.
func (a *AuditLog) List(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	query, args := listAuditQuery(f)

	var raw []byte
	if err := a.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	var rows []auditRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode audit log: %w", err)
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func listAuditQuery(f AuditFilter) (string, []any) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}

	// Build WHERE clause dynamically
	wb := NewWhereBuilder()
	wb.Add("table_name", f.Table)
	wb.Add("action", string(f.Action))
	wb.Add("severity", string(f.Severity))

	// Add time range (always applied)
	start := f.StartTime
	if start.IsZero() {
		start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	end := f.EndTime
	if end.IsZero() {
		end = time.Now().Add(24 * time.Hour)
	}
	wb.AddTimestampRange("created_at", start, end)

	where, args := wb.Build()
	limitIdx := wb.NextArgIndex()
	query := fmt.Sprintf(`SELECT COALESCE(jsonb_agg(to_jsonb(e) ORDER BY e.created_at DESC), '[]'::jsonb)
		FROM (SELECT * FROM gridform_audit%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d) e`,
		where, limitIdx, limitIdx+1)
	return query, append(args, f.Limit, f.Offset)
}
