package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/gridform/internal/core"
)

// Rules compiles the table's fields into core rules. Fields whose rules
// carry a condition get a RuleFunc evaluated against the row being checked.
func (t *Table) Rules() core.Rules {
	rules := make(core.Rules, len(t.Fields))
	for _, f := range t.Fields {
		base := f.baseRules()
		if !f.conditional() {
			if len(base) == 0 && len(f.Rules) == 0 {
				continue
			}
			rules[f.Name] = core.Static(append(base, f.specRules(nil)...)...)
			continue
		}
		field := f
		rules[f.Name] = core.Dynamic(func(_ context.Context, row core.Row, _ *core.Store) ([]core.Rule, error) {
			return append(append([]core.Rule(nil), base...), field.specRules(row)...), nil
		})
	}
	return rules
}

// baseRules are the rules implied by Required and Type.
func (f Field) baseRules() []core.Rule {
	var rules []core.Rule
	if f.Required {
		r := core.Tag("required")
		if f.Label != "" {
			r.Message = f.Label + " is required"
		}
		rules = append(rules, r)
	}
	if f.Type != "" && f.Type != FieldText {
		typ := f.Type
		rules = append(rules, core.Rule{
			Message: fmt.Sprintf("%s must be %s", f.DisplayName(), typ.describe()),
			Check: func(_ context.Context, value any, _ core.Row) error {
				if !conforms(typ, value) {
					return errors.New("type mismatch")
				}
				return nil
			},
		})
	}
	return rules
}

// specRules returns the file rules that apply to row. A nil row selects
// only unconditional rules.
func (f Field) specRules(row core.Row) []core.Rule {
	var rules []core.Rule
	for _, r := range f.Rules {
		if r.When != nil && (row == nil || !r.When.Matches(row)) {
			continue
		}
		rules = append(rules, core.Rule{Tag: r.Tag, Message: r.Message})
	}
	return rules
}

func (f Field) conditional() bool {
	for _, r := range f.Rules {
		if r.When != nil {
			return true
		}
	}
	return false
}

// Matches reports whether row satisfies the condition. A nil Equals matches
// a missing or empty value.
func (c *Condition) Matches(row core.Row) bool {
	v := row[c.Field]
	if c.Equals == nil {
		return v == nil || v == ""
	}
	if v == nil {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(c.Equals)
}

func (t FieldType) describe() string {
	switch t {
	case FieldNumeric:
		return "a number"
	case FieldDate:
		return "a date"
	case FieldBool:
		return "yes or no"
	}
	return "text"
}

// Normalize returns a copy of values with each known field cleaned,
// normalized and converted to its type. Unknown fields pass through.
func (t *Table) Normalize(values core.Row) core.Row {
	out := make(core.Row, len(values))
	for name, v := range values {
		f, ok := t.Field(name)
		if !ok {
			out[name] = v
			continue
		}
		if s, isString := v.(string); isString && f.Normalize != "" {
			v = normalizers[f.Normalize](s)
		}
		out[name] = coerce(f.Type, v)
	}
	return out
}

// SeedRows returns the normalized seed rows.
func (t *Table) SeedRows() []core.Row {
	rows := make([]core.Row, 0, len(t.Seed))
	for _, r := range t.Seed {
		rows = append(rows, t.Normalize(core.Row(r)))
	}
	return rows
}

// NewStore creates an empty store for the table. opts are applied first,
// so the table's own key field and rules take precedence.
func (t *Table) NewStore(opts ...core.Option) *core.Store {
	all := append([]core.Option(nil), opts...)
	all = append(all, core.WithRules(t.Rules()))
	if t.KeyField != "" {
		all = append(all, core.WithKeyField(t.KeyField))
	}
	return core.NewStore(t.Name, all...)
}

// Register creates a store per table and registers it on form. Stores are
// returned in file order and left unseeded; see SeedRows.
func (f *File) Register(form *core.Form, opts ...core.Option) []*core.Store {
	stores := make([]*core.Store, 0, len(f.Tables))
	for i := range f.Tables {
		t := &f.Tables[i]
		s := t.NewStore(opts...)
		form.Register(t.Name, s)
		stores = append(stores, s)
	}
	return stores
}
