package records

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BloodPressure carries the systolic/diastolic pair exactly as measured.
type BloodPressure struct {
	Systolic  float64 `json:"systolic" bson:"systolic"`
	Diastolic float64 `json:"diastolic" bson:"diastolic"`
}

// SaveRequest is the payload a station submits after a completed scan.
// Confidence defaults to 85 when the station omits it.
type SaveRequest struct {
	HeartRate        float64       `json:"heartRate"`
	HRV              float64       `json:"hrv"`
	BloodPressure    BloodPressure `json:"bloodPressure"`
	StressLevel      string        `json:"stressLevel"`
	AIInterpretation string        `json:"aiInterpretation"`
	Confidence       float64       `json:"confidence"`
}

// SaveResponse acknowledges a stored scan.
type SaveResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScanRecord is the stored document for one completed scan. Timestamps are
// RFC 3339 strings so the newest-first sort works on the raw field.
type ScanRecord struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           string             `json:"userId" bson:"userId"`
	Type             string             `json:"type" bson:"type"`
	Timestamp        string             `json:"timestamp" bson:"timestamp"`
	Status           string             `json:"status" bson:"status"`
	HeartRate        float64            `json:"heartRate" bson:"heartRate"`
	HRV              float64            `json:"hrv" bson:"hrv"`
	BloodPressure    BloodPressure      `json:"bloodPressure" bson:"bloodPressure"`
	StressLevel      string             `json:"stressLevel" bson:"stressLevel"`
	Confidence       float64            `json:"confidence" bson:"confidence"`
	AIInterpretation string             `json:"aiInterpretation" bson:"aiInterpretation"`
}

// Report is the trimmed view of a scan served to dashboards.
type Report struct {
	ID               string  `json:"id"`
	Type             string  `json:"type"`
	Timestamp        string  `json:"timestamp"`
	AIInterpretation string  `json:"aiInterpretation"`
	Confidence       float64 `json:"confidence"`
	Severity         string  `json:"severity"`
	Risk             string  `json:"risk"`
}

// ReportsResponse wraps the recent-reports listing.
type ReportsResponse struct {
	Reports []Report `json:"reports"`
}
