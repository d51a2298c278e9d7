// Package scan owns the capture-session lifecycle: the controller state
// machine, the session timer, the result pipeline, and the observable
// session state the UI reads.
package scan

import (
	"github.com/pkg/errors"
)

// Phase is the controller's position in the session lifecycle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhaseStopping  Phase = "stopping"
)

// StorageOutcome reports where a completed scan's result ended up.
type StorageOutcome string

const (
	StorageNone  StorageOutcome = "none"
	StorageCloud StorageOutcome = "cloud"
	StorageLocal StorageOutcome = "local"
)

// Stress levels and status labels derived from the measured vitals.
const (
	StressNormal = "Normal"
	StressHigh   = "High"

	StatusStable   = "STABLE"
	StatusElevated = "ELEVATED"
)

// StopReason records which path ended a recording.
type StopReason string

const (
	StopDeadline    StopReason = "deadline"
	StopUser        StopReason = "user"
	StopDeviceError StopReason = "device_error"
	StopShutdown    StopReason = "shutdown"
)

// BloodPressure is the measured systolic/diastolic pair.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// VitalScanResult is a completed scan as shown to the operator.
type VitalScanResult struct {
	HeartRate        int           `json:"heartRate"`
	HRV              float64       `json:"hrv"`
	BloodPressure    BloodPressure `json:"bloodPressure"`
	StressLevel      string        `json:"stressLevel"`
	StatusLabel      string        `json:"statusLabel"`
	Timestamp        string        `json:"timestamp"`
	AIInterpretation string        `json:"aiInterpretation"`
	Quality          string        `json:"quality"`
	Confidence       float64       `json:"confidence"`
	DurationSeconds  float64       `json:"durationSeconds"`
	FramesProcessed  int           `json:"framesProcessed"`
	FaceFrames       int           `json:"faceFrames"`
}

// Error kinds surfaced in session state.
const (
	ErrKindDevice       = "device"
	ErrKindEmptyCapture = "empty_capture"
	ErrKindAnalysis     = "analysis"
)

// ErrorInfo is the operator-facing error attached to session state.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Sentinel errors for controller operations.
var (
	ErrBusy           = errors.New("scan: a session is already recording or processing")
	ErrDeviceNotReady = errors.New("scan: capture device not ready")
	ErrEmptyCapture   = errors.New("scan: recording produced no data")
)
