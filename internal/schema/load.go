package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema is wrapped by every structural problem Parse reports.
var ErrInvalidSchema = errors.New("invalid schema")

// Load reads and parses a schema file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a schema document and checks it. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every structural problem in the file at once.
func (f *File) Validate() error {
	var errs []string
	tables := make(map[string]bool, len(f.Tables))

	if len(f.Tables) == 0 {
		errs = append(errs, "no tables defined")
	}
	for i, t := range f.Tables {
		where := fmt.Sprintf("tables[%d]", i)
		if t.Name == "" {
			errs = append(errs, where+": name is required")
		} else {
			where = fmt.Sprintf("table %q", t.Name)
			if tables[t.Name] {
				errs = append(errs, where+": duplicate table name")
			}
			tables[t.Name] = true
		}

		fields := make(map[string]bool, len(t.Fields))
		for _, fd := range t.Fields {
			if fd.Name == "" {
				errs = append(errs, where+": field name is required")
				continue
			}
			if fields[fd.Name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate field %q", where, fd.Name))
			}
			fields[fd.Name] = true
		}

		for _, fd := range t.Fields {
			fw := fmt.Sprintf("%s field %q", where, fd.Name)
			if !fd.Type.valid() {
				errs = append(errs, fmt.Sprintf("%s: unknown type %q", fw, fd.Type))
			}
			if fd.Normalize != "" {
				if _, ok := normalizers[fd.Normalize]; !ok {
					errs = append(errs, fmt.Sprintf("%s: unknown normalizer %q", fw, fd.Normalize))
				}
			}
			for j, r := range fd.Rules {
				if r.Tag == "" {
					errs = append(errs, fmt.Sprintf("%s rules[%d]: tag is required", fw, j))
				}
				if r.When != nil && !fields[r.When.Field] {
					errs = append(errs, fmt.Sprintf("%s rules[%d]: condition field %q is not defined", fw, j, r.When.Field))
				}
			}
		}

		if t.KeyField != "" {
			for j, row := range t.Seed {
				if _, ok := row[t.KeyField]; !ok {
					errs = append(errs, fmt.Sprintf("%s seed[%d]: missing key field %q", where, j, t.KeyField))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidSchema, strings.Join(errs, "\n  - "))
	}
	return nil
}
