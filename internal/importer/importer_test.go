package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/schema"
)

const peopleYAML = `
tables:
  - name: people
    key_field: id
    fields:
      - name: name
        label: Full Name
        required: true
      - name: age
        type: numeric
        rules:
          - tag: gte=0
            message: age must not be negative
    seed:
      - {id: p1, name: Ann, age: "30"}
`

func setup(t *testing.T) (*core.Store, *schema.Table) {
	t.Helper()
	file, err := schema.Parse([]byte(peopleYAML))
	require.NoError(t, err)
	table, ok := file.Table("people")
	require.True(t, ok)
	store := table.NewStore()
	store.Seed(table.SeedRows())
	t.Cleanup(store.Close)
	return store, table
}

func TestImport_InsertsAndUpdates(t *testing.T) {
	store, table := setup(t)
	data := "exported 2026-10-01\n\nid,Full Name,age,ignored\np1,Ann B,31,x\n,Bob,40,y\n,,,\n"

	rep, err := Import(context.Background(), store, table, strings.NewReader(data), Options{})

	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Full Name", "age", "ignored"}, rep.Header)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 2, rep.Valid)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, 2, store.Len())

	row, ok := store.Row("p1")
	require.True(t, ok)
	assert.Equal(t, "Ann B", row["name"])
	assert.Equal(t, 31.0, row["age"])
	assert.NotContains(t, row, "ignored")
}

func TestImport_ReportsInvalidRows(t *testing.T) {
	store, table := setup(t)
	data := "name,age\nCarl,-1\n,5\nDana,7\n"

	rep, err := Import(context.Background(), store, table, strings.NewReader(data), Options{})

	require.NoError(t, err)
	assert.Equal(t, 3, rep.Inserted)
	assert.Equal(t, 1, rep.Valid)
	require.Len(t, rep.Failed, 2)
	assert.Equal(t, 2, rep.Failed[0].Line)
	assert.Contains(t, rep.Failed[0].Reason, "age must not be negative")
	assert.Equal(t, 3, rep.Failed[1].Line)
	assert.Contains(t, rep.Failed[1].Reason, "Full Name is required")
	assert.Equal(t, 4, store.Len(), "invalid rows stay in the store")
	assert.NotEmpty(t, store.Errors(rep.Failed[0].Key))
}

func TestImport_DropInvalid(t *testing.T) {
	store, table := setup(t)
	data := "name,age\nCarl,-1\nDana,7\n"

	rep, err := Import(context.Background(), store, table, strings.NewReader(data), Options{DropInvalid: true})

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 2, store.Len())
	_, ok := store.Row(rep.Failed[0].Key)
	assert.False(t, ok)
}

func TestImport_DropInvalidRestoresUpdatedRow(t *testing.T) {
	store, table := setup(t)
	var deleted []string
	store.OnRowDeleted(func(key string) { deleted = append(deleted, key) })

	rep, err := Import(context.Background(), store, table, strings.NewReader("id,name,age\np1,Ann,-5\n"), Options{DropInvalid: true})

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 0, rep.Dropped)
	assert.Equal(t, 1, rep.Restored)
	assert.Empty(t, deleted)

	row, ok := store.Row("p1")
	require.True(t, ok)
	assert.Equal(t, 30.0, row["age"])
	assert.Equal(t, core.StatusNone, store.Status("p1"))
	assert.Empty(t, store.Errors("p1"))
}

func TestImport_FailedUpdateCanBeCancelled(t *testing.T) {
	store, table := setup(t)

	_, err := Import(context.Background(), store, table, strings.NewReader("id,name,age\np1,Ann,-5\n"), Options{})

	require.NoError(t, err)
	assert.Equal(t, core.StatusEdit, store.Status("p1"))
	row, _ := store.Row("p1")
	assert.Equal(t, -5.0, row["age"])

	assert.Equal(t, core.StatusEdit, store.CancelOperation("p1"))
	row, _ = store.Row("p1")
	assert.Equal(t, 30.0, row["age"])
}

func TestImport_CommitRunsSaveHooks(t *testing.T) {
	store, table := setup(t)
	var saved []string
	store.OnRowSaved(func(key string, _ core.Row) { saved = append(saved, key) })

	rep, err := Import(context.Background(), store, table, strings.NewReader("id,name,age\np1,Ann,30\np9,Zed,2\n"), Options{Commit: true})

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Saved)
	assert.Equal(t, []string{"p1", "p9"}, saved)
	assert.Equal(t, core.StatusNone, store.Status("p1"))
}

func TestImport_HeaderNotFound(t *testing.T) {
	store, table := setup(t)
	_, err := Import(context.Background(), store, table, strings.NewReader("age\n3\n"), Options{})
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestImport_SkipsBOMAndCleansCells(t *testing.T) {
	store, table := setup(t)
	data := "\xEF\xBB\xBFname,age\n=\"Eve\",\" 12 \"\n"

	rep, err := Import(context.Background(), store, table, strings.NewReader(data), Options{})

	require.NoError(t, err)
	require.Equal(t, 1, rep.Inserted)
	keys := store.Keys()
	row, _ := store.Row(keys[len(keys)-1])
	assert.Equal(t, "Eve", row["name"])
	assert.Equal(t, 12.0, row["age"])
}

func TestImport_Cancelled(t *testing.T) {
	store, table := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Import(ctx, store, table, strings.NewReader("name\nA\n"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReport_WriteFailed(t *testing.T) {
	rep := &Report{
		Header: []string{"name", "age"},
		Failed: []Failure{{Line: 2, Reason: "age: bad", Record: []string{"Carl", "-1"}}},
	}
	var buf bytes.Buffer
	require.NoError(t, rep.WriteFailed(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Status", "name", "age"},
		{"age: bad", "Carl", "-1"},
	}, records)
}
