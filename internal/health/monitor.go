package health

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Target is one probed service.
type Target struct {
	Name string
	URL  string
}

// Monitor probes every target concurrently on a fixed cadence. Reads never
// block on probes: Latest serves whatever the last completed sweep produced.
type Monitor struct {
	targets     []Target
	interval    time.Duration
	httpClient  *http.Client
	proxyOrigin string

	mu     sync.RWMutex
	latest *Report
}

func NewMonitor(targets []Target, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		targets:    targets,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnableProxy routes probes through a CORS-relay origin.
func (m *Monitor) EnableProxy(origin string) {
	m.proxyOrigin = origin
}

// CheckOnce sweeps all targets concurrently and stores the report unless the
// context was cancelled while probing.
func (m *Monitor) CheckOnce(ctx context.Context) Report {
	report := Report{
		Services:  make(map[string]ServiceStatus, len(m.targets)),
		CheckedAt: time.Now(),
	}

	results := make([]ServiceStatus, len(m.targets))
	var wg sync.WaitGroup
	for i, target := range m.targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = m.probe(ctx, target)
		}(i, target)
	}
	wg.Wait()

	for _, st := range results {
		if !st.OK {
			log.Printf("HealthMonitor: %s check failed: %s", st.Name, st.Message)
		}
		report.Services[st.Name] = st
	}

	m.setLatest(ctx, report)
	return report
}

// RunPeriodic probes immediately, then on every interval tick until ctx is
// cancelled.
func (m *Monitor) RunPeriodic(ctx context.Context) {
	m.CheckOnce(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// Latest returns the last completed report, if any sweep has finished.
func (m *Monitor) Latest() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Report{}, false
	}
	return *m.latest, true
}

func (m *Monitor) setLatest(ctx context.Context, report Report) {
	if ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	m.latest = &report
	m.mu.Unlock()
}

func (m *Monitor) probe(ctx context.Context, target Target) ServiceStatus {
	status := ServiceStatus{Name: target.Name}

	url := target.URL
	if m.proxyOrigin != "" {
		url = m.proxyOrigin + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Message = "invalid probe URL"
		status.ErrorKind = KindUnknown
		status.RawError = err.Error()
		return status
	}
	if m.proxyOrigin != "" {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	status.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		status.ErrorKind = KindCORS
		status.Message = "unreachable"
		status.RawError = err.Error()
		return status
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		status.OK = true
		status.Message = "ok"
	case resp.StatusCode == http.StatusNotFound:
		status.ErrorKind = KindNotFound
		status.Message = fmt.Sprintf("probe endpoint missing (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		status.ErrorKind = KindDown
		status.Message = fmt.Sprintf("service erroring (status %d)", resp.StatusCode)
	default:
		status.ErrorKind = KindUnknown
		status.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return status
}
