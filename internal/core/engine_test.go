package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagEngine_Validate(t *testing.T) {
	e := NewTagEngine()
	ctx := context.Background()

	tests := []struct {
		name    string
		rules   map[string][]Rule
		row     Row
		wantMsg []string
	}{
		{
			name:    "required empty string",
			rules:   map[string][]Rule{"name": {Tag("required")}},
			row:     Row{"name": ""},
			wantMsg: []string{"name is required"},
		},
		{
			name:    "required missing field",
			rules:   map[string][]Rule{"name": {Tag("required")}},
			row:     Row{},
			wantMsg: []string{"name is required"},
		},
		{
			name:  "required accepts zero number",
			rules: map[string][]Rule{"qty": {Tag("required")}},
			row:   Row{"qty": float64(0)},
		},
		{
			name:  "required accepts false",
			rules: map[string][]Rule{"agreed": {Tag("required")}},
			row:   Row{"agreed": false},
		},
		{
			name:    "required empty slice",
			rules:   map[string][]Rule{"tags": {Tag("required")}},
			row:     Row{"tags": []string{}},
			wantMsg: []string{"tags is required"},
		},
		{
			name:    "zero number reaches later tags",
			rules:   map[string][]Rule{"amount": {Tag("required,gt=0")}},
			row:     Row{"amount": float64(0)},
			wantMsg: []string{"amount must be greater than 0"},
		},
		{
			name:  "passes",
			rules: map[string][]Rule{"name": {Tag("required,min=2")}},
			row:   Row{"name": "Jo"},
		},
		{
			name:    "param in message",
			rules:   map[string][]Rule{"code": {Tag("len=3")}},
			row:     Row{"code": "ABCD"},
			wantMsg: []string{"code must have length 3"},
		},
		{
			name:    "oneof lists choices",
			rules:   map[string][]Rule{"status": {Tag("oneof=open closed")}},
			row:     Row{"status": "pending"},
			wantMsg: []string{"status must be one of: open, closed"},
		},
		{
			name:    "custom message wins",
			rules:   map[string][]Rule{"email": {{Tag: "email", Message: "bad email"}}},
			row:     Row{"email": "nope"},
			wantMsg: []string{"bad email"},
		},
		{
			name:  "omitempty skips missing value",
			rules: map[string][]Rule{"age": {Tag("omitempty,gte=0")}},
			row:   Row{},
		},
		{
			name: "fields are reported in sorted order",
			rules: map[string][]Rule{
				"z": {Tag("required")},
				"a": {Tag("required")},
			},
			row:     Row{},
			wantMsg: []string{"a is required", "z is required"},
		},
		{
			name: "check sees the whole row",
			rules: map[string][]Rule{"end": {{Check: func(_ context.Context, value any, row Row) error {
				if value.(int) < row["start"].(int) {
					return errors.New("end must not precede start")
				}
				return nil
			}}}},
			row:     Row{"start": 5, "end": 3},
			wantMsg: []string{"end must not precede start"},
		},
		{
			name: "check skipped when tag fails",
			rules: map[string][]Rule{"n": {{Tag: "required", Check: func(context.Context, any, Row) error {
				return errors.New("should not run")
			}}}},
			row:     Row{"n": ""},
			wantMsg: []string{"n is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := e.Validate(ctx, tt.rules, tt.row)
			require.NoError(t, err)
			var got []string
			for _, ve := range errs {
				got = append(got, ve.Message)
			}
			assert.Equal(t, tt.wantMsg, got)
		})
	}
}

func TestTagEngine_MalformedTag(t *testing.T) {
	e := NewTagEngine()
	_, err := e.Validate(context.Background(), map[string][]Rule{"x": {Tag("not_a_real_tag")}}, Row{"x": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestTagEngine_RegisterTag(t *testing.T) {
	e := NewTagEngine()
	require.NoError(t, e.RegisterTag("upper", func(v any) bool {
		s, ok := v.(string)
		return ok && s == strings.ToUpper(s)
	}))

	errs, err := e.Validate(context.Background(), map[string][]Rule{"code": {Tag("upper")}}, Row{"code": "abc"})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "upper", errs[0].Tag)
	assert.Equal(t, "code failed upper validation", errs[0].Message)
}

func TestTagEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTagEngine().Validate(ctx, map[string][]Rule{"x": {Tag("required")}}, Row{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRowClone(t *testing.T) {
	orig := Row{"n": 1, "list": []any{Row{"x": 1}}, "m": map[string]any{"k": []string{"a"}}}
	c := orig.Clone()
	require.Equal(t, orig, c)

	c["list"].([]any)[0].(Row)["x"] = 2
	c["m"].(map[string]any)["k"].([]string)[0] = "b"

	assert.Equal(t, 1, orig["list"].([]any)[0].(Row)["x"])
	assert.Equal(t, []string{"a"}, orig["m"].(map[string]any)["k"])
}
