package capture

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimCamera() *SimCamera {
	cam := NewSimCamera(Settings{Width: 32, Height: 24, Framerate: 5, BitrateKbps: 64})
	cam.frameInterval = 5 * time.Millisecond
	cam.chunkInterval = 20 * time.Millisecond
	return cam
}

type chunkCollector struct {
	mu     sync.Mutex
	chunks []Chunk
}

func (c *chunkCollector) add(chunk Chunk) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
}

func (c *chunkCollector) all() []Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Chunk(nil), c.chunks...)
}

func TestSimCameraRecordingEmitsFlvChunks(t *testing.T) {
	cam := newTestSimCamera()
	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var got chunkCollector
	rec, err := stream.StartRecording(got.add)
	require.NoError(t, err)

	time.Sleep(90 * time.Millisecond)
	require.NoError(t, rec.Stop(context.Background()))

	chunks := got.all()
	require.NotEmpty(t, chunks)
	assert.True(t, bytes.HasPrefix(chunks[0], []byte("FLV")),
		"first chunk should carry the container header")

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	t.Logf("collected %d chunks, %d bytes", len(chunks), total)
}

func TestSimRecordingStopIsIdempotent(t *testing.T) {
	cam := newTestSimCamera()
	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var got chunkCollector
	rec, err := stream.StartRecording(got.add)
	require.NoError(t, err)

	require.NoError(t, rec.Stop(context.Background()))
	emitted := len(got.all())
	require.NoError(t, rec.Stop(context.Background()))
	require.NoError(t, rec.Stop(context.Background()))
	assert.Equal(t, emitted, len(got.all()), "repeated stops must not emit again")
}

func TestSimStreamRejectsOverlappingRecordings(t *testing.T) {
	cam := newTestSimCamera()
	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	rec, err := stream.StartRecording(func(Chunk) {})
	require.NoError(t, err)

	_, err = stream.StartRecording(func(Chunk) {})
	assert.ErrorIs(t, err, ErrRecordingActive)

	require.NoError(t, rec.Stop(context.Background()))

	rec2, err := stream.StartRecording(func(Chunk) {})
	require.NoError(t, err, "a new recording should start after the old one stopped")
	require.NoError(t, rec2.Stop(context.Background()))
}

func TestSimStreamCloseIsIdempotent(t *testing.T) {
	cam := newTestSimCamera()
	stream, err := cam.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	_, err = stream.StartRecording(func(Chunk) {})
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestSimPreviewOutlivesRecordings(t *testing.T) {
	cam := newTestSimCamera()
	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	rec, err := stream.StartRecording(func(Chunk) {})
	require.NoError(t, err)
	require.NoError(t, rec.Stop(context.Background()))

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := stream.Preview().JPEG(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no preview frame after the recording stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	img, err := stream.Preview().JPEG()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte{0xff, 0xd8}), "preview should encode as JPEG")
}
