package scan

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"vitalscan/internal/analyzer"
	"vitalscan/internal/capture"
	"vitalscan/internal/journal"
	"vitalscan/internal/records"
)

// Analyzer uploads a captured clip and returns the measured vitals.
type Analyzer interface {
	Analyze(ctx context.Context, clip []byte, filename string) (*analyzer.Response, error)
}

// RecordSaver persists a completed scan to the records service.
type RecordSaver interface {
	SaveScan(ctx context.Context, req records.SaveRequest) (*records.SaveResponse, error)
}

// ScanJournal keeps a local copy of every completed scan.
type ScanJournal interface {
	Append(entry journal.Entry) error
}

// Pipeline turns a finished recording into a published result: upload,
// analyze, interpret, persist. Persistence failures degrade the storage
// outcome; they never fail the scan.
type Pipeline struct {
	analyzer Analyzer
	saver    RecordSaver
	journal  ScanJournal
	state    *StateStore
}

func NewPipeline(a Analyzer, saver RecordSaver, j ScanJournal, state *StateStore) *Pipeline {
	return &Pipeline{analyzer: a, saver: saver, journal: j, state: state}
}

// Process runs the full result pipeline for one session's captured chunks.
// The returned outcome reports where the result landed; ctx cancellation
// suppresses state publication but never interrupts a running analysis.
func (p *Pipeline) Process(ctx context.Context, sessionID, clipName string, chunks []capture.Chunk) (*VitalScanResult, StorageOutcome, error) {
	var total int
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		p.setError(ctx, ErrKindEmptyCapture, "recording produced no data")
		return nil, StorageNone, ErrEmptyCapture
	}

	clip := make([]byte, 0, total)
	for _, chunk := range chunks {
		clip = append(clip, chunk...)
	}
	log.Printf("Pipeline: session %s captured %s in %d chunks", sessionID, humanize.Bytes(uint64(total)), len(chunks))

	resp, err := p.analyzer.Analyze(ctx, clip, clipName)
	if err != nil {
		p.setError(ctx, ErrKindAnalysis, err.Error())
		return nil, StorageNone, err
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "analysis failed"
		}
		aerr := &analyzer.AnalysisError{Reason: reason}
		p.setError(ctx, ErrKindAnalysis, aerr.Error())
		return nil, StorageNone, aerr
	}

	result := mapResult(resp)
	outcome := p.persist(ctx, sessionID, result)
	if ctx.Err() != nil {
		return result, outcome, ctx.Err()
	}
	p.state.SetResult(result, outcome)
	log.Printf("Pipeline: session %s completed (%s, storage %s)", sessionID, result.StatusLabel, outcome)
	return result, outcome, nil
}

// mapResult derives the station-facing result from the analyzer payload.
// Stress is High strictly above index 50 and status is ELEVATED strictly
// above 100 bpm; both boundaries read as normal.
func mapResult(resp *analyzer.Response) *VitalScanResult {
	result := &VitalScanResult{
		HeartRate: int(math.Round(resp.HeartRate)),
		HRV:       resp.HRV,
		BloodPressure: BloodPressure{
			Systolic:  resp.BloodPressure.Systolic,
			Diastolic: resp.BloodPressure.Diastolic,
		},
		StressLevel:     StressNormal,
		StatusLabel:     StatusStable,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Quality:         resp.Quality,
		Confidence:      resp.Confidence,
		DurationSeconds: resp.DurationSeconds,
		FramesProcessed: resp.FramesProcessed,
		FaceFrames:      resp.FaceFrames,
	}
	if resp.StressIndex > 50 {
		result.StressLevel = StressHigh
	}
	if resp.HeartRate > 100 {
		result.StatusLabel = StatusElevated
	}
	result.AIInterpretation = buildInterpretation(result)
	return result
}

// persist stores the result in the records service and the local journal.
// Cloud failure downgrades the outcome to local; journal failure is logged
// and otherwise ignored.
func (p *Pipeline) persist(ctx context.Context, sessionID string, result *VitalScanResult) StorageOutcome {
	outcome := StorageLocal
	if p.saver != nil {
		req := records.SaveRequest{
			HeartRate: float64(result.HeartRate),
			HRV:       result.HRV,
			BloodPressure: records.BloodPressure{
				Systolic:  float64(result.BloodPressure.Systolic),
				Diastolic: float64(result.BloodPressure.Diastolic),
			},
			StressLevel:      result.StressLevel,
			AIInterpretation: result.AIInterpretation,
			Confidence:       result.Confidence,
		}
		if _, err := p.saver.SaveScan(ctx, req); err != nil {
			log.Printf("Pipeline: cloud save failed, result kept locally: %v", err)
		} else {
			outcome = StorageCloud
		}
	}
	if p.journal != nil {
		entry := journal.Entry{
			SessionID:   sessionID,
			HeartRate:   result.HeartRate,
			HRV:         result.HRV,
			Systolic:    result.BloodPressure.Systolic,
			Diastolic:   result.BloodPressure.Diastolic,
			StressLevel: result.StressLevel,
			Confidence:  result.Confidence,
			Outcome:     string(outcome),
		}
		if err := p.journal.Append(entry); err != nil {
			log.Printf("Pipeline: journal append failed: %v", err)
		}
	}
	return outcome
}

func (p *Pipeline) setError(ctx context.Context, kind, message string) {
	if ctx.Err() != nil {
		return
	}
	p.state.SetError(kind, message)
}
