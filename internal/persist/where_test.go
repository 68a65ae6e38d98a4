package persist

import (
	"testing"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(wb.conditions))
	}
}

func TestWhereBuilder_Build(t *testing.T) {
	tests := []struct {
		name       string
		build      func(*WhereBuilder)
		wantClause string
		wantArgs   int
	}{
		{
			name:       "empty",
			build:      func(*WhereBuilder) {},
			wantClause: "",
		},
		{
			name:       "single condition",
			build:      func(wb *WhereBuilder) { wb.Add("table_name", "people") },
			wantClause: " WHERE table_name = $1",
			wantArgs:   1,
		},
		{
			name: "multiple conditions",
			build: func(wb *WhereBuilder) {
				wb.Add("table_name", "people")
				wb.Add("action", "row_save")
			},
			wantClause: " WHERE table_name = $1 AND action = $2",
			wantArgs:   2,
		},
		{
			name: "empty value skipped",
			build: func(wb *WhereBuilder) {
				wb.Add("table_name", "")
				wb.Add("action", "row_save")
			},
			wantClause: " WHERE action = $1",
			wantArgs:   1,
		},
		{
			name:       "timestamp range",
			build:      func(wb *WhereBuilder) { wb.AddTimestampRange("created_at", "2024-01-01", "2024-12-31") },
			wantClause: " WHERE created_at >= $1 AND created_at <= $2",
			wantArgs:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			tt.build(wb)
			clause, args := wb.Build()
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
			if tt.wantArgs == 0 && args != nil {
				t.Errorf("expected nil args, got %v", args)
			}
		})
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()
	if wb.NextArgIndex() != 1 {
		t.Errorf("expected 1, got %d", wb.NextArgIndex())
	}
	wb.Add("col1", "val1")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected 2, got %d", wb.NextArgIndex())
	}
	wb.AddTimestampRange("created_at", "start", "end")
	if wb.NextArgIndex() != 4 {
		t.Errorf("expected 4, got %d", wb.NextArgIndex())
	}
}
