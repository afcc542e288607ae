package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/pkg/core/health"
)

func TestObserveCommand(t *testing.T) {
	m := New()

	m.ObserveCommand("show", OutcomeOK, time.Millisecond)
	m.ObserveCommand("show", OutcomeOK, time.Millisecond)
	m.ObserveCommand("add", OutcomeError, time.Millisecond)
	m.ObserveCommand("frobnicate", OutcomeUnknown, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("show", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("add", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("frobnicate", OutcomeUnknown)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("show", OutcomeOK, time.Millisecond)
	m.SetCollectionSize(3)
	m.ObserveScriptLine(false)
}

func TestRouter(t *testing.T) {
	m := New()
	m.SetCollectionSize(3)
	m.ObserveScriptLine(true)

	checks := health.NewRegistry("flatset", "test")
	checks.Register(health.GaugeCheck("collection", func() int { return 3 }))

	srv := httptest.NewServer(Router(m, checks, time.Second))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "flatset_collection_size 3")
	assert.Contains(t, string(body), `flatset_script_lines_total{outcome="ok"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestHealthzUnhealthy(t *testing.T) {
	checks := health.NewRegistry("flatset", "test")
	checks.Register(health.PingCheck("store", func(ctx context.Context) error {
		return io.ErrUnexpectedEOF
	}))

	rec := httptest.NewRecorder()
	Router(New(), checks, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "unexpected EOF"))
}

func TestHealthzCancelsSlowChecks(t *testing.T) {
	checks := health.NewRegistry("flatset", "test")
	checks.Register(health.PingCheck("store", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	rec := httptest.NewRecorder()
	start := time.Now()
	Router(New(), checks, 50*time.Millisecond).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadline exceeded")
}

func TestStartAndShutdown(t *testing.T) {
	s, err := Start("127.0.0.1:0", New(), health.NewRegistry("flatset", "test"), mdwlog.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(time.Second))
}
