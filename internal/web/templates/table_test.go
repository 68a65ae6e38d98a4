package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	view := TableView{
		Name:    "people",
		Columns: []Column{{Name: "name", Label: "Name", Required: true}, {Name: "note", Label: "Note"}},
		Rows: []Row{
			{Key: "a", Cells: []Cell{{Value: "Ann"}, {Value: "<b>hi</b>"}}},
			{Key: "b", Status: "edit", Cells: []Cell{{Errors: []string{"Name is required"}}, {}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Table(view).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, `data-table="people"`)
	assert.Contains(t, html, `<th data-field="name">Name<span class="required">*</span></th>`)
	assert.Contains(t, html, `&lt;b&gt;hi&lt;/b&gt;`)
	assert.Contains(t, html, `<tr data-key="b" data-status="edit">`)
	assert.Contains(t, html, `<li>Name is required</li>`)
	assert.NotContains(t, html, "No rows")
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(TableView{Name: "x"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `<td colspan="1">No rows</td>`)
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("Row not found", "Reload", "ROW001").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Code: ROW001")
	assert.Contains(t, buf.String(), `role="alert"`)
}
