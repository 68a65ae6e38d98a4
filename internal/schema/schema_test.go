package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridform/internal/core"
)

const ordersYAML = `
tables:
  - name: orders
    key_field: id
    fields:
      - name: customer
        label: Customer
        required: true
      - name: state
        normalize: us_state
        rules:
          - tag: len=2
            message: use a two letter state code
      - name: qty
        type: numeric
        rules:
          - tag: gte=1
      - name: status
        rules:
          - tag: oneof=open rejected
      - name: note
        rules:
          - tag: required
            message: explain the rejection
            when: {field: status, equals: rejected}
    seed:
      - {id: o1, customer: Acme, state: california, qty: "1,200", status: open}
      - {id: o2, customer: "", qty: 0, status: rejected}
  - name: people
    fields:
      - name: name
        required: true
`

func parseOrders(t *testing.T) *File {
	t.Helper()
	f, err := Parse([]byte(ordersYAML))
	require.NoError(t, err)
	return f
}

func TestParse(t *testing.T) {
	f := parseOrders(t)

	require.Len(t, f.Tables, 2)
	orders, ok := f.Table("orders")
	require.True(t, ok)
	assert.Equal(t, "id", orders.KeyField)
	assert.Equal(t, []string{"customer", "state", "qty", "status", "note"}, orders.FieldNames())
	assert.Len(t, orders.Seed, 2)

	_, ok = f.Table("missing")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no tables", "tables: []", "no tables defined"},
		{"unknown key", "tables:\n  - name: a\n    colour: red\n", "colour"},
		{"missing name", "tables:\n  - fields: [{name: x}]\n", "name is required"},
		{"duplicate table", "tables:\n  - name: a\n  - name: a\n", "duplicate table"},
		{"duplicate field", "tables:\n  - name: a\n    fields: [{name: x}, {name: x}]\n", "duplicate field"},
		{"unknown type", "tables:\n  - name: a\n    fields: [{name: x, type: money}]\n", "unknown type"},
		{"unknown normalizer", "tables:\n  - name: a\n    fields: [{name: x, normalize: title}]\n", "unknown normalizer"},
		{"empty tag", "tables:\n  - name: a\n    fields: [{name: x, rules: [{message: hi}]}]\n", "tag is required"},
		{"bad condition", "tables:\n  - name: a\n    fields: [{name: x, rules: [{tag: required, when: {field: y, equals: 1}}]}]\n", "condition field"},
		{"seed without key", "tables:\n  - name: a\n    key_field: id\n    seed: [{x: 1}]\n", "missing key field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Tables, 2)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestTable_Normalize(t *testing.T) {
	orders, _ := parseOrders(t).Table("orders")

	got := orders.Normalize(core.Row{
		"state":   " New York ",
		"qty":     "($1,250.50)",
		"note":    `="hello"`,
		"unknown": "kept",
	})

	assert.Equal(t, "NY", got["state"])
	assert.Equal(t, -1250.5, got["qty"])
	assert.Equal(t, "hello", got["note"])
	assert.Equal(t, "kept", got["unknown"])

	rows := orders.SeedRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "CA", rows[0]["state"])
	assert.Equal(t, float64(1200), rows[0]["qty"])
}

func TestTable_Rules(t *testing.T) {
	orders, _ := parseOrders(t).Table("orders")
	s := orders.NewStore()
	t.Cleanup(s.Close)
	assert.Equal(t, "id", s.KeyField())
	s.Seed(orders.SeedRows())

	res, err := s.ValidateAll(context.Background(), core.ValidateAllOptions{AllowErrors: true})
	require.NoError(t, err)

	require.Len(t, res.DataList, 1)
	assert.Equal(t, "o1", res.DataList[0]["id"])

	failed := res.ErrorInfo["o2"]
	assert.Equal(t, []string{"Customer is required"}, messages(failed.Fields["customer"]))
	assert.Equal(t, []string{"qty must be greater than or equal to 1"}, messages(failed.Fields["qty"]))
	assert.Equal(t, []string{"explain the rejection"}, messages(failed.Fields["note"]))
}

func TestTable_TypeRule(t *testing.T) {
	orders, _ := parseOrders(t).Table("orders")
	s := orders.NewStore()
	t.Cleanup(s.Close)

	_, err := s.Validate(context.Background(), core.Row{"id": "x", "customer": "A", "qty": "lots"}, "qty")

	var re *core.RowError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "qty must be a number", re.Errors[0].Message)
}

func TestTable_RequiredAcceptsZeroValues(t *testing.T) {
	f, err := Parse([]byte(`
tables:
  - name: terms
    fields:
      - name: agreed
        type: bool
        required: true
      - name: qty
        type: numeric
        required: true
        rules:
          - tag: gt=0
            message: qty must be positive
      - name: signer
        required: true
`))
	require.NoError(t, err)
	terms, _ := f.Table("terms")
	s := terms.NewStore()
	t.Cleanup(s.Close)

	row := terms.Normalize(core.Row{"id": "r1", "agreed": "no", "qty": "0", "signer": ""})
	assert.Equal(t, false, row["agreed"])
	assert.Equal(t, float64(0), row["qty"])

	_, err = s.Validate(context.Background(), row)

	var re *core.RowError
	require.ErrorAs(t, err, &re)
	got := map[string]string{}
	for _, ve := range re.Errors {
		got[ve.Field] = ve.Message
	}
	assert.Equal(t, map[string]string{
		"qty":    "qty must be positive",
		"signer": "signer is required",
	}, got)
}

func TestCondition_Matches(t *testing.T) {
	tests := []struct {
		cond Condition
		row  core.Row
		want bool
	}{
		{Condition{Field: "s", Equals: "x"}, core.Row{"s": "x"}, true},
		{Condition{Field: "s", Equals: "x"}, core.Row{"s": "y"}, false},
		{Condition{Field: "s", Equals: "x"}, core.Row{}, false},
		{Condition{Field: "n", Equals: 3}, core.Row{"n": 3}, true},
		{Condition{Field: "n", Equals: 3}, core.Row{"n": "3"}, true},
		{Condition{Field: "b", Equals: true}, core.Row{"b": true}, true},
		{Condition{Field: "s"}, core.Row{"s": ""}, true},
		{Condition{Field: "s"}, core.Row{}, true},
		{Condition{Field: "s"}, core.Row{"s": "v"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cond.Matches(tt.row), "%+v on %v", tt.cond, tt.row)
	}
}

func TestFile_Register(t *testing.T) {
	f := parseOrders(t)
	form := core.NewForm()

	stores := f.Register(form, core.WithKeyField("key"))
	for _, s := range stores {
		t.Cleanup(s.Close)
	}

	assert.Equal(t, []string{"orders", "people"}, form.Names())
	people, ok := form.Store("people")
	require.True(t, ok)
	assert.Equal(t, "key", people.KeyField(), "option applies when the table sets none")
	orders, _ := form.Store("orders")
	assert.Equal(t, "id", orders.KeyField())
	assert.False(t, orders.Initialized())
}

func messages(errs []core.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}

func TestLoad_ShippedSchema(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "gridform.yaml"))
	require.NoError(t, err)

	form := core.NewForm()
	stores := f.Register(form)
	for i, s := range stores {
		s.Seed(f.Tables[i].SeedRows())
		t.Cleanup(s.Close)
	}

	res, err := form.ValidateAll(context.Background(), core.FormValidateOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.NameToErrorInfo, "seed rows should be valid")

	inv, _ := form.Store("invoices")
	row, _ := inv.Row("INV-1001")
	assert.Equal(t, 1250.0, row["amount"])
	assert.Equal(t, "2026-01-15", row["issued"])
	assert.Equal(t, "USD", row["currency"])
}
