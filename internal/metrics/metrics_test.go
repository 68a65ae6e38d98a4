package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridform/internal/core"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe(core.Event{Table: "t", Kind: core.EventValidated})
	m.Observe(core.Event{Table: "t", Kind: core.EventValidated, Failed: true})
	m.Observe(core.Event{Table: "t", Kind: core.EventValidated, Failed: true})
	m.Observe(core.Event{Table: "t", Kind: core.EventRowSaved})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("t", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("t", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowEvents.WithLabelValues("t", "row_saved")))
}

func TestMetrics_Sample(t *testing.T) {
	m := New(nil)
	s := core.NewStore("t")
	t.Cleanup(s.Close)
	s.Seed([]core.Row{{"rowId": "a"}, {"rowId": "b"}})
	require.NoError(t, s.BeginEdit("a"))
	s.BeginAdd(nil)

	m.Sample(s)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeOps.WithLabelValues("t", "edit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeOps.WithLabelValues("t", "add")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues("t")))
}

func TestMetrics_Track(t *testing.T) {
	m := New(nil)
	form := core.NewForm()
	s := core.NewStore("t")
	t.Cleanup(s.Close)
	form.Register("t", s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Track(ctx, form, 16)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s.AddRow(nil)
		return testutil.ToFloat64(m.rows.WithLabelValues("t")) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track did not return after cancel")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObserveRequest("GET", "/api/tables", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `gridform_http_requests_total{method="GET",route="/api/tables",status="200"} 1`)
	assert.Contains(t, string(body), `route="unmatched"`)
}
