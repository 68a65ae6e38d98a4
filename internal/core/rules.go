package core

import (
	"context"
	"fmt"
)

// Rule is one validation constraint for a field.
//
// Tag uses go-playground/validator syntax ("required", "min=3,max=20",
// "oneof=a b c"). A leading "required" fails only on an empty cell (nil,
// "", or an empty slice or map), so 0 and false satisfy it. Check runs arbitrary logic with access to the whole row.
// When both are set, Tag runs first and Check only runs if it passed.
type Rule struct {
	Tag     string
	Message string
	Check   func(ctx context.Context, value any, row Row) error
}

// RuleFunc computes the rules for a field from the current row and store,
// which allows cross-field and context-dependent constraints.
type RuleFunc func(ctx context.Context, row Row, s *Store) ([]Rule, error)

// FieldRules is either a static rule list or a RuleFunc.
type FieldRules struct {
	Static  []Rule
	Dynamic RuleFunc
}

// Rules maps field names to their rules.
type Rules map[string]FieldRules

// Static builds a FieldRules from a fixed rule list.
func Static(rules ...Rule) FieldRules {
	return FieldRules{Static: rules}
}

// Dynamic builds a FieldRules computed per validation.
func Dynamic(fn RuleFunc) FieldRules {
	return FieldRules{Dynamic: fn}
}

// Tag is shorthand for a tag-only rule.
func Tag(tag string) Rule {
	return Rule{Tag: tag}
}

// resolve returns the concrete rules for one field.
func (fr FieldRules) resolve(ctx context.Context, field string, row Row, s *Store) ([]Rule, error) {
	if fr.Dynamic != nil {
		rules, err := fr.Dynamic(ctx, row, s)
		if err != nil {
			return nil, fmt.Errorf("resolve rules for %s: %w", field, err)
		}
		return rules, nil
	}
	return fr.Static, nil
}
