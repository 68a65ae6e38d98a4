package importer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_RoundTrip(t *testing.T) {
	store, table := setup(t)
	var buf bytes.Buffer

	n, err := Export(&buf, store, table)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "id,Full Name,age\np1,Ann,30\n", buf.String())

	other, _ := setup(t)
	other.Clear(true)
	rep, err := Import(context.Background(), other, table, &buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Inserted)
	row, ok := other.Row("p1")
	require.True(t, ok)
	assert.Equal(t, 30.0, row["age"])
}

func TestWriteTemplate(t *testing.T) {
	store, table := setup(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, store, table))
	assert.Equal(t, "id,Full Name,age\n", buf.String())
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{42.0, "42"},
		{1.5, "1.5"},
		{true, "true"},
		{time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "2026-03-04"},
		{7, "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCell(tt.in), "FormatCell(%v)", tt.in)
	}
}
