package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) importCSV(query, body, accept string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/tables/people/import"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Import(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.importCSV("", "id,Name,age\np2,Beth,21\n,Cid,-4\n", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["updated"])
	assert.Equal(t, float64(1), out["inserted"])
	assert.Len(t, out["failed"], 1)
	assert.Equal(t, 3, h.people.Len())

	row, _ := h.people.Row("p2")
	assert.Equal(t, "Beth", row["name"])
}

func TestServer_Import_DropInvalidAsCSV(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.importCSV("?drop_invalid=true", "name,age\nCid,-4\n", "text/csv")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Status,name,age", lines[0])
	assert.Contains(t, lines[1], "age must not be negative")
	assert.Equal(t, 2, h.people.Len())
}

func TestServer_Import_NoHeader(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.importCSV("", "age\n1\n", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Import_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Form.MaxImportBytes = 16
	h := newHarness(t, cfg)

	rec := h.importCSV("", "name,age\n"+strings.Repeat("Zed,1\n", 10), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Import_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Form.MaxConcurrentImports = 1
	cfg.Form.ImportWait = 10 * time.Millisecond
	h := newHarness(t, cfg)
	require.True(t, h.srv.imports.TryAcquire())
	defer h.srv.imports.Release()

	rec := h.importCSV("", "name\nZed\n", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, "IMP001", decode(t, rec)["code"])
}

func TestServer_ExportAndTemplate(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.do(http.MethodGet, "/api/tables/people/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "people_")
	assert.Equal(t, "id,Name,age\np1,Ann,30\np2,,20\n", rec.Body.String())

	rec = h.do(http.MethodGet, "/api/tables/people/template", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id,Name,age\n", rec.Body.String())
}
