package scan

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalscan/internal/analyzer"
	"vitalscan/internal/capture"
	"vitalscan/internal/journal"
	"vitalscan/internal/records"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	resp     *analyzer.Response
	err      error
	calls    int
	clipName string
	clipLen  int
	block    chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, clip []byte, filename string) (*analyzer.Response, error) {
	f.mu.Lock()
	f.calls++
	f.clipName = filename
	f.clipLen = len(clip)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSaver struct {
	mu    sync.Mutex
	err   error
	calls int
	last  records.SaveRequest
}

func (f *fakeSaver) SaveScan(ctx context.Context, req records.SaveRequest) (*records.SaveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &records.SaveResponse{Success: true, ID: "68ac2f109f1b2c3d4e5f6a7b"}, nil
}

type fakeJournal struct {
	mu      sync.Mutex
	err     error
	entries []journal.Entry
}

func (f *fakeJournal) Append(entry journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func healthyResponse() *analyzer.Response {
	return &analyzer.Response{
		Success:         true,
		HeartRate:       105.4,
		HRV:             42,
		BloodPressure:   analyzer.BloodPressure{Systolic: 128, Diastolic: 82},
		StressIndex:     61,
		Quality:         "good",
		Confidence:      88,
		DurationSeconds: 29.8,
		FramesProcessed: 300,
		FaceFrames:      287,
	}
}

func TestPipelineProcessPublishesResult(t *testing.T) {
	fa := &fakeAnalyzer{resp: healthyResponse()}
	saver := &fakeSaver{}
	jrnl := &fakeJournal{}
	state := NewStateStore()
	p := NewPipeline(fa, saver, jrnl, state)

	chunks := []capture.Chunk{[]byte("abc"), []byte("de")}
	result, outcome, err := p.Process(context.Background(), "sess-1", "capture.webm", chunks)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "capture.webm", fa.clipName)
	assert.Equal(t, 5, fa.clipLen, "chunks must be concatenated in order")
	assert.Equal(t, 105, result.HeartRate)
	assert.Equal(t, StressHigh, result.StressLevel)
	assert.Equal(t, StatusElevated, result.StatusLabel)
	assert.Contains(t, result.AIInterpretation, "Status: ELEVATED")
	assert.Equal(t, StorageCloud, outcome)

	snap := state.Snapshot()
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, result, snap.LastResult)
	assert.Equal(t, StorageCloud, snap.StorageOutcome)
	assert.Nil(t, snap.LastError)

	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, float64(105), saver.last.HeartRate)
	assert.Equal(t, float64(128), saver.last.BloodPressure.Systolic)
	assert.Equal(t, StressHigh, saver.last.StressLevel)
	assert.NotEmpty(t, saver.last.AIInterpretation)

	require.Len(t, jrnl.entries, 1)
	assert.Equal(t, "sess-1", jrnl.entries[0].SessionID)
	assert.Equal(t, "cloud", jrnl.entries[0].Outcome)
}

func TestPipelineBoundariesReadNormal(t *testing.T) {
	resp := healthyResponse()
	resp.HeartRate = 100
	resp.StressIndex = 50
	fa := &fakeAnalyzer{resp: resp}
	state := NewStateStore()
	p := NewPipeline(fa, &fakeSaver{}, &fakeJournal{}, state)

	result, _, err := p.Process(context.Background(), "sess-2", "capture.webm", []capture.Chunk{[]byte("x")})
	require.NoError(t, err)
	assert.Equal(t, StressNormal, result.StressLevel, "stress index 50 is not high")
	assert.Equal(t, StatusStable, result.StatusLabel, "100 bpm is not elevated")
}

func TestPipelineCloudFailureDegradesToLocal(t *testing.T) {
	fa := &fakeAnalyzer{resp: healthyResponse()}
	saver := &fakeSaver{err: errors.New("records service unreachable")}
	jrnl := &fakeJournal{}
	state := NewStateStore()
	p := NewPipeline(fa, saver, jrnl, state)

	result, outcome, err := p.Process(context.Background(), "sess-3", "capture.webm", []capture.Chunk{[]byte("x")})
	require.NoError(t, err, "persistence failure must not fail the scan")
	require.NotNil(t, result)
	assert.Equal(t, StorageLocal, outcome)

	snap := state.Snapshot()
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, StorageLocal, snap.StorageOutcome)
	assert.Nil(t, snap.LastError)

	require.Len(t, jrnl.entries, 1)
	assert.Equal(t, "local", jrnl.entries[0].Outcome)
}

func TestPipelineWithoutSaverStaysLocal(t *testing.T) {
	fa := &fakeAnalyzer{resp: healthyResponse()}
	state := NewStateStore()
	p := NewPipeline(fa, nil, nil, state)

	_, outcome, err := p.Process(context.Background(), "sess-4", "capture.webm", []capture.Chunk{[]byte("x")})
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, outcome)
}

func TestPipelineAnalysisTransportError(t *testing.T) {
	aerr := &analyzer.AnalysisError{StatusCode: 500, Reason: "internal error"}
	fa := &fakeAnalyzer{err: aerr}
	saver := &fakeSaver{}
	state := NewStateStore()
	p := NewPipeline(fa, saver, &fakeJournal{}, state)

	result, outcome, err := p.Process(context.Background(), "sess-5", "capture.webm", []capture.Chunk{[]byte("x")})
	assert.Nil(t, result)
	assert.Equal(t, StorageNone, outcome)

	var got *analyzer.AnalysisError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 500, got.StatusCode)

	snap := state.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, ErrKindAnalysis, snap.LastError.Kind)
	assert.Nil(t, snap.LastResult)
	assert.Equal(t, 0, saver.calls, "failed analysis must not be persisted")
}

func TestPipelineAnalyzerReportedFailure(t *testing.T) {
	fa := &fakeAnalyzer{resp: &analyzer.Response{Success: false, Error: "no face detected in video"}}
	state := NewStateStore()
	p := NewPipeline(fa, &fakeSaver{}, &fakeJournal{}, state)

	_, _, err := p.Process(context.Background(), "sess-6", "capture.webm", []capture.Chunk{[]byte("x")})
	var got *analyzer.AnalysisError
	require.ErrorAs(t, err, &got)
	assert.Contains(t, got.Reason, "no face detected")

	snap := state.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Contains(t, snap.LastError.Message, "no face detected")
}

func TestPipelineEmptyCapture(t *testing.T) {
	fa := &fakeAnalyzer{resp: healthyResponse()}
	state := NewStateStore()
	p := NewPipeline(fa, &fakeSaver{}, &fakeJournal{}, state)

	result, outcome, err := p.Process(context.Background(), "sess-7", "capture.webm", nil)
	require.ErrorIs(t, err, ErrEmptyCapture)
	assert.Nil(t, result)
	assert.Equal(t, StorageNone, outcome)
	assert.Equal(t, 0, fa.callCount(), "empty captures must never be uploaded")

	snap := state.Snapshot()
	require.NotNil(t, snap.LastError)
	assert.Equal(t, ErrKindEmptyCapture, snap.LastError.Kind)
}

func TestPipelineCancelledContextSkipsPublication(t *testing.T) {
	fa := &fakeAnalyzer{resp: healthyResponse()}
	state := NewStateStore()
	p := NewPipeline(fa, &fakeSaver{}, &fakeJournal{}, state)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, _, err := p.Process(ctx, "sess-8", "capture.webm", []capture.Chunk{[]byte("x")})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "the computed result is still returned to the caller")
	assert.Nil(t, state.Snapshot().LastResult, "cancelled runs must not publish state")
}
