// Package templates renders the HTML fragments served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Column is one rendered table column.
type Column struct {
	Name     string
	Label    string
	Required bool
}

// Cell is one rendered value with its error messages.
type Cell struct {
	Value  string
	Errors []string
}

// Row is one rendered table row. Status is "", "add" or "edit".
type Row struct {
	Key    string
	Status string
	Cells  []Cell
}

// TableView is the data behind the Table fragment.
type TableView struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// Table renders an editable grid fragment. Cells with errors carry
// aria-invalid and list their messages below the value.
func Table(v TableView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<table class="gridform" data-table="%s"><thead><tr>`, templ.EscapeString(v.Name))
		for _, c := range v.Columns {
			label := templ.EscapeString(c.Label)
			if c.Required {
				label += `<span class="required">*</span>`
			}
			fmt.Fprintf(&b, `<th data-field="%s">%s</th>`, templ.EscapeString(c.Name), label)
		}
		b.WriteString(`</tr></thead><tbody>`)

		if len(v.Rows) == 0 {
			fmt.Fprintf(&b, `<tr class="empty"><td colspan="%d">No rows</td></tr>`, max(len(v.Columns), 1))
		}
		for _, r := range v.Rows {
			fmt.Fprintf(&b, `<tr data-key="%s"`, templ.EscapeString(r.Key))
			if r.Status != "" {
				fmt.Fprintf(&b, ` data-status="%s"`, templ.EscapeString(r.Status))
			}
			b.WriteString(`>`)
			for _, c := range r.Cells {
				writeCell(&b, c)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeCell(b *strings.Builder, c Cell) {
	if len(c.Errors) == 0 {
		fmt.Fprintf(b, `<td>%s</td>`, templ.EscapeString(c.Value))
		return
	}
	fmt.Fprintf(b, `<td aria-invalid="true">%s<ul class="errors">`, templ.EscapeString(c.Value))
	for _, msg := range c.Errors {
		fmt.Fprintf(b, `<li>%s</li>`, templ.EscapeString(msg))
	}
	b.WriteString(`</ul></td>`)
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p>%s</p><p class="action">%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}
