package scan

import (
	"fmt"
	"strings"
)

// buildInterpretation renders the fixed-structure summary shown alongside a
// result. Every line is always present; the bracketed tags carry the
// per-metric reading.
func buildInterpretation(r *VitalScanResult) string {
	quality := r.Quality
	if quality == "" {
		quality = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Vital Scan Analysis - Status: %s\n", r.StatusLabel)
	fmt.Fprintf(&b, "Signal quality: %s (confidence %.0f%%)\n\n", quality, r.Confidence)
	fmt.Fprintf(&b, "Heart Rate: %d bpm [%s]\n", r.HeartRate, heartRateTag(r.HeartRate))
	fmt.Fprintf(&b, "HRV: %.1f ms [%s]\n", r.HRV, hrvTag(r.HRV))
	fmt.Fprintf(&b, "Blood Pressure: %d/%d mmHg [%s]\n", r.BloodPressure.Systolic, r.BloodPressure.Diastolic, bloodPressureTag(r.BloodPressure))
	fmt.Fprintf(&b, "Stress Level: %s [%s]\n\n", r.StressLevel, stressTag(r.StressLevel))
	fmt.Fprintf(&b, "Derived from %.1fs of captured video with a face detected in %d of %d frames.", r.DurationSeconds, r.FaceFrames, r.FramesProcessed)
	return b.String()
}

func heartRateTag(bpm int) string {
	switch {
	case bpm > 100:
		return "Elevated"
	case bpm < 60:
		return "Low"
	default:
		return "Normal"
	}
}

func hrvTag(ms float64) string {
	switch {
	case ms < 20:
		return "Low"
	case ms > 80:
		return "High"
	default:
		return "Balanced"
	}
}

func bloodPressureTag(bp BloodPressure) string {
	switch {
	case bp.Systolic >= 140 || bp.Diastolic >= 90:
		return "High"
	case bp.Systolic > 0 && bp.Systolic < 90:
		return "Low"
	default:
		return "Normal"
	}
}

func stressTag(level string) string {
	if level == StressHigh {
		return "Monitor"
	}
	return "Stable"
}
