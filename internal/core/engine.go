package core

// engine.go adapts go-playground/validator to field-level row validation.
//
// The store never interprets rules itself. It resolves the rule list for each
// requested field and hands the set to an Engine, which returns one
// ValidationError per failed constraint. An Engine returns a non-nil error
// only when validation could not run at all.

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Engine validates a row against resolved per-field rules.
type Engine interface {
	Validate(ctx context.Context, rules map[string][]Rule, row Row) ([]ValidationError, error)
}

// TagEngine is the default Engine, backed by a shared validator instance.
type TagEngine struct {
	v *validator.Validate
}

// NewTagEngine creates an engine. Custom tags can be added with RegisterTag.
func NewTagEngine() *TagEngine {
	return &TagEngine{v: validator.New()}
}

// RegisterTag adds a custom validation tag usable in Rule.Tag.
func (e *TagEngine) RegisterTag(tag string, fn func(value any) bool) error {
	return e.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().Interface())
	})
}

// Validate runs every rule for every field. Fields are visited in sorted
// order so the error list is stable.
func (e *TagEngine) Validate(ctx context.Context, rules map[string][]Rule, row Row) (errs []ValidationError, err error) {
	defer func() {
		// validator panics on malformed tags
		if r := recover(); r != nil {
			errs = nil
			err = fmt.Errorf("validation engine panic: %v", r)
		}
	}()

	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := row[field]
		for _, rule := range rules[field] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ve, failed, err := e.check(ctx, field, value, row, rule)
			if err != nil {
				return nil, err
			}
			if failed {
				errs = append(errs, ve)
			}
		}
	}
	return errs, nil
}

func (e *TagEngine) check(ctx context.Context, field string, value any, row Row, rule Rule) (ValidationError, bool, error) {
	tag := rule.Tag
	if rest, ok := splitRequired(tag); ok {
		if IsEmpty(value) {
			msg := rule.Message
			if msg == "" {
				msg = tagMessage(field, "required", "")
			}
			return ValidationError{Field: field, Value: value, Message: msg, Tag: "required"}, true, nil
		}
		tag = rest
	}
	if tag != "" {
		if err := e.v.VarCtx(ctx, value, tag); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) || len(verrs) == 0 {
				return ValidationError{}, false, fmt.Errorf("validate %s: %w", field, err)
			}
			fe := verrs[0]
			msg := rule.Message
			if msg == "" {
				msg = tagMessage(field, fe.ActualTag(), fe.Param())
			}
			return ValidationError{Field: field, Value: value, Message: msg, Tag: fe.ActualTag()}, true, nil
		}
	}
	if rule.Check != nil {
		if err := rule.Check(ctx, value, row); err != nil {
			if ctx.Err() != nil {
				return ValidationError{}, false, ctx.Err()
			}
			msg := rule.Message
			if msg == "" {
				msg = err.Error()
			}
			return ValidationError{Field: field, Value: value, Message: msg}, true, nil
		}
	}
	return ValidationError{}, false, nil
}

// splitRequired reports whether tag starts with a bare "required" and
// returns the tags after it. The validator's own required rejects zero
// values such as 0 and false, which are legitimate cell values.
func splitRequired(tag string) (string, bool) {
	head, rest, _ := strings.Cut(tag, ",")
	if head != "required" {
		return tag, false
	}
	return rest, true
}

// IsEmpty reports whether a cell holds no value: nil, "", or an empty
// slice or map.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// tagMessage renders a readable message for a failed validator tag.
func tagMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("%s must have length %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "alpha":
		return fmt.Sprintf("%s must contain only letters", field)
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
