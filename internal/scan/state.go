package scan

import "sync"

// StateSnapshot is one observable view of the station's scan state.
type StateSnapshot struct {
	SessionID      string           `json:"sessionId,omitempty"`
	Recording      bool             `json:"isRecording"`
	ElapsedSeconds int              `json:"elapsedSeconds"`
	Processing     bool             `json:"isProcessing"`
	DeviceReady    bool             `json:"deviceReady"`
	DemoMode       bool             `json:"demoMode"`
	LastResult     *VitalScanResult `json:"lastResult,omitempty"`
	LastError      *ErrorInfo       `json:"lastError,omitempty"`
	StorageOutcome StorageOutcome   `json:"storageOutcome"`
}

// StateStore holds the current snapshot and hands a copy to the update
// channel after every mutation. The station's broadcast hub is the single
// consumer; slow consumption drops intermediate snapshots, never the
// current one (Snapshot always serves it).
type StateStore struct {
	mu      sync.RWMutex
	current StateSnapshot
	updates chan StateSnapshot
}

func NewStateStore() *StateStore {
	return &StateStore{
		current: StateSnapshot{StorageOutcome: StorageNone},
		updates: make(chan StateSnapshot, 16),
	}
}

// Snapshot returns the current state. Result and error pointers are shared;
// published results are never mutated.
func (s *StateStore) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Updates delivers a snapshot after every mutation.
func (s *StateStore) Updates() <-chan StateSnapshot {
	return s.updates
}

func (s *StateStore) mutate(fn func(*StateSnapshot)) {
	s.mu.Lock()
	fn(&s.current)
	snap := s.current
	s.mu.Unlock()

	select {
	case s.updates <- snap:
	default:
	}
}

// SetRecording marks a session started or finished. Starting a session
// resets the elapsed counter and clears the previous result and error.
func (s *StateStore) SetRecording(sessionID string, recording bool) {
	s.mutate(func(st *StateSnapshot) {
		st.Recording = recording
		if recording {
			st.SessionID = sessionID
			st.ElapsedSeconds = 0
			st.LastResult = nil
			st.LastError = nil
			st.StorageOutcome = StorageNone
		}
	})
}

func (s *StateStore) SetElapsed(elapsed int) {
	s.mutate(func(st *StateSnapshot) {
		st.ElapsedSeconds = elapsed
	})
}

func (s *StateStore) SetProcessing(processing bool) {
	s.mutate(func(st *StateSnapshot) {
		st.Processing = processing
	})
}

func (s *StateStore) SetDeviceReady(ready bool) {
	s.mutate(func(st *StateSnapshot) {
		st.DeviceReady = ready
	})
}

func (s *StateStore) SetDemoMode(enabled bool) {
	s.mutate(func(st *StateSnapshot) {
		st.DemoMode = enabled
	})
}

// SetResult publishes a completed scan and where it was stored.
func (s *StateStore) SetResult(result *VitalScanResult, outcome StorageOutcome) {
	s.mutate(func(st *StateSnapshot) {
		st.LastResult = result
		st.StorageOutcome = outcome
		st.LastError = nil
	})
}

// SetError publishes a failure; any previous result is discarded.
func (s *StateStore) SetError(kind, message string) {
	s.mutate(func(st *StateSnapshot) {
		st.LastError = &ErrorInfo{Kind: kind, Message: message}
		st.LastResult = nil
		st.StorageOutcome = StorageNone
	})
}

func (s *StateStore) ClearError() {
	s.mutate(func(st *StateSnapshot) {
		st.LastError = nil
	})
}
