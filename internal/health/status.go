// Package health probes the station's upstream services and keeps the most
// recent reachability report for the UI.
package health

import "time"

// Probe failure classifications. From where the station sits, a transport
// failure is indistinguishable from a blocked origin, so it reports as CORS.
const (
	KindCORS     = "CORS"
	KindDown     = "DOWN"
	KindNotFound = "NOT_FOUND"
	KindUnknown  = "UNKNOWN"
)

// ServiceStatus is the outcome of one probe. A reachable service that
// answers with an error status has OK=false but still carries its latency.
type ServiceStatus struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	ErrorKind string `json:"errorKind,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	RawError  string `json:"rawError,omitempty"`
}

// Report bundles the most recent probe of every target, keyed by target name.
type Report struct {
	Services  map[string]ServiceStatus `json:"services"`
	CheckedAt time.Time                `json:"checkedAt"`
}
