package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/schema"
)

const twoTables = `
tables:
  - name: a
    key_field: id
    fields: [{name: v}]
    seed:
      - {id: a1, v: x}
  - name: b
    fields: [{name: v}]
`

func newResetter(t *testing.T) (*Resetter, []*core.Store) {
	t.Helper()
	file, err := schema.Parse([]byte(twoTables))
	require.NoError(t, err)
	form := core.NewForm()
	stores := file.Register(form)
	for i, s := range stores {
		s.Seed(file.Tables[i].SeedRows())
		t.Cleanup(s.Close)
	}
	return &Resetter{Form: form, Schema: file}, stores
}

func TestResetter_Reset(t *testing.T) {
	r, stores := newResetter(t)
	a := stores[0]
	require.NoError(t, a.BeginEdit("a1"))
	a.UpdateRow("a1", core.Row{"v": "changed"}, false)
	a.AddRow(core.Row{"v": "new"})

	res, err := r.Reset(context.Background(), "a", "test")

	require.NoError(t, err)
	assert.Equal(t, ResetResult{Table: "a", Rows: 1}, res)
	row, _ := a.Row("a1")
	assert.Equal(t, "x", row["v"])
	assert.Equal(t, core.StatusNone, a.Status("a1"))
}

func TestResetter_UnknownTable(t *testing.T) {
	r, _ := newResetter(t)
	_, err := r.Reset(context.Background(), "ghost", "test")
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestResetter_ResetAll(t *testing.T) {
	r, stores := newResetter(t)
	stores[1].AddRow(core.Row{"v": "tmp"})

	results, err := r.ResetAll(context.Background(), "test")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[1].Table)
	assert.Equal(t, 0, stores[1].Len())
	assert.True(t, stores[1].Initialized())
}
