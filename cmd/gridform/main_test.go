package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
tables:
  - name: people
    key_field: id
    fields:
      - name: name
        label: Name
        required: true
    seed:
      - {id: p1, name: Ann}
      - {id: p2, name: ""}
`

func writeSchema(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	path := filepath.Join(t.TempDir(), "gridform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))
	return path
}

func TestValidateCmd(t *testing.T) {
	path := writeSchema(t)
	cmd := validateCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out.String(), "✗ people: 1 rows valid, 1 failed")
	assert.Contains(t, out.String(), "p2.name: Name is required")
}

func TestValidateCmd_UnknownTable(t *testing.T) {
	path := writeSchema(t)
	cmd := validateCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--table", "ghost"})

	err := cmd.Execute()

	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out.String(), "✗ ghost: table ghost not found")
}

func TestImportCmd(t *testing.T) {
	path := writeSchema(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	failedPath := filepath.Join(dir, "failed.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Name,note\nBob,x\n,y\n"), 0o600))

	cmd := importCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--table", "people", "--failed", failedPath, csvPath})

	err := cmd.Execute()

	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out.String(), "people: 2 inserted, 0 updated, 1 saved, 1 failed")
	failed, err := os.ReadFile(failedPath)
	require.NoError(t, err)
	assert.Contains(t, string(failed), "Status,Name")
}

func TestResetCmd_RequiresTables(t *testing.T) {
	path := writeSchema(t)
	cmd := resetCmd(&path)
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}

func TestExportCmd(t *testing.T) {
	path := writeSchema(t)
	cmd := exportCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--table", "people"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "id,Name\np1,Ann\np2,\n", out.String())
}
