// Package schema loads table definitions from YAML and turns them into
// configured core stores.
//
// A schema file lists tables. Each table names its key field, its fields
// with a type, optional normalizer and validation rules, and optional seed
// rows:
//
//	tables:
//	  - name: orders
//	    key_field: id
//	    fields:
//	      - name: customer
//	        required: true
//	      - name: state
//	        normalize: us_state
//	        rules:
//	          - tag: len=2
//	            message: use a two letter state code
//	      - name: qty
//	        type: numeric
//	        rules:
//	          - tag: gte=1
//	      - name: note
//	        rules:
//	          - tag: required
//	            message: explain the rejection
//	            when: {field: status, equals: rejected}
//	    seed:
//	      - {id: o1, customer: Acme, qty: 3, status: open}
package schema

// FieldType is the value type of a field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumeric FieldType = "numeric"
	FieldDate    FieldType = "date"
	FieldBool    FieldType = "bool"
)

func (t FieldType) valid() bool {
	switch t {
	case "", FieldText, FieldNumeric, FieldDate, FieldBool:
		return true
	}
	return false
}

// File is the root of a schema document.
type File struct {
	Tables []Table `yaml:"tables"`
}

// Table describes one editable table.
type Table struct {
	Name     string           `yaml:"name"`
	KeyField string           `yaml:"key_field"`
	Fields   []Field          `yaml:"fields"`
	Seed     []map[string]any `yaml:"seed"`
}

// Field describes one column.
type Field struct {
	Name      string     `yaml:"name"`
	Label     string     `yaml:"label"`
	Type      FieldType  `yaml:"type"`
	Required  bool       `yaml:"required"`
	Normalize string     `yaml:"normalize"`
	Rules     []RuleSpec `yaml:"rules"`
}

// RuleSpec is one validation rule. Tag uses go-playground/validator syntax.
// When set, the rule only applies to rows matching the condition.
type RuleSpec struct {
	Tag     string     `yaml:"tag"`
	Message string     `yaml:"message"`
	When    *Condition `yaml:"when"`
}

// Condition matches a row whose Field equals Equals.
type Condition struct {
	Field  string `yaml:"field"`
	Equals any    `yaml:"equals"`
}

// Table returns the table named name.
func (f *File) Table(name string) (*Table, bool) {
	for i := range f.Tables {
		if f.Tables[i].Name == name {
			return &f.Tables[i], true
		}
	}
	return nil, false
}

// DisplayName returns the label, or the field name when no label is set.
func (f Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// FieldNames returns the names of the table's fields in file order.
func (t *Table) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field returns the field named name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
