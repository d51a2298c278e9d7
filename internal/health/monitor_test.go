package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeHealthyService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	m := NewMonitor([]Target{{Name: "analyzer", URL: srv.URL}}, time.Minute, 5*time.Second)
	report := m.CheckOnce(context.Background())

	st := report.Services["analyzer"]
	assert.True(t, st.OK)
	assert.Equal(t, "ok", st.Message)
	assert.Empty(t, st.ErrorKind)
	assert.GreaterOrEqual(t, st.LatencyMs, int64(0))
}

func TestProbeClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind string
	}{
		{"missing endpoint", http.StatusNotFound, KindNotFound},
		{"internal error", http.StatusInternalServerError, KindDown},
		{"unavailable", http.StatusServiceUnavailable, KindDown},
		{"unexpected status", http.StatusTeapot, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			m := NewMonitor([]Target{{Name: "svc", URL: srv.URL}}, time.Minute, 5*time.Second)
			st := m.CheckOnce(context.Background()).Services["svc"]

			assert.False(t, st.OK, "non-2xx means reachable but not healthy")
			assert.Equal(t, tt.wantKind, st.ErrorKind)
			assert.NotEmpty(t, st.Message)
		})
	}
}

func TestProbeTransportFailureReportsCORS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	m := NewMonitor([]Target{{Name: "records", URL: srv.URL}}, time.Minute, time.Second)
	st := m.CheckOnce(context.Background()).Services["records"]

	assert.False(t, st.OK)
	assert.Equal(t, KindCORS, st.ErrorKind)
	assert.NotEmpty(t, st.RawError, "the raw transport error is preserved for diagnosis")
}

func TestCheckOnceProbesAllTargetsConcurrently(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer fast.Close()

	m := NewMonitor([]Target{
		{Name: "analyzer", URL: slow.URL},
		{Name: "records", URL: fast.URL},
	}, time.Minute, 5*time.Second)

	start := time.Now()
	report := m.CheckOnce(context.Background())
	elapsed := time.Since(start)

	require.Len(t, report.Services, 2)
	assert.True(t, report.Services["analyzer"].OK)
	assert.True(t, report.Services["records"].OK)
	assert.Less(t, elapsed, 190*time.Millisecond, "probes should overlap, not run back to back")

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, report.CheckedAt, latest.CheckedAt)
}

func TestProbeThroughProxy(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Contains(t, r.URL.Path, "/svc/health")
		w.Write([]byte("ok"))
	}))
	defer relay.Close()

	m := NewMonitor([]Target{{Name: "svc", URL: "/svc/health"}}, time.Minute, 5*time.Second)
	m.EnableProxy(relay.URL)

	st := m.CheckOnce(context.Background()).Services["svc"]
	assert.True(t, st.OK)
}

func TestNoUpdatesAfterCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := NewMonitor([]Target{{Name: "svc", URL: srv.URL}}, time.Minute, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.CheckOnce(ctx)

	_, ok := m.Latest()
	assert.False(t, ok, "a cancelled sweep must not publish a report")
}

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := NewMonitor([]Target{{Name: "svc", URL: srv.URL}}, 10*time.Millisecond, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunPeriodic(ctx)
		close(done)
	}()

	// Let at least the immediate sweep land, then cancel.
	time.Sleep(30 * time.Millisecond)
	_, ok := m.Latest()
	assert.True(t, ok)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop after cancellation")
	}
}
