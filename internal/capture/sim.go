package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SimCamera is a hardware-free camera used for the station's degraded
// (offline/simulated) mode and in tests. Its preview renders a moving
// gradient and its recordings emit one-second slices of a synthetic FLV
// clip.
type SimCamera struct {
	settings Settings

	frameInterval time.Duration
	chunkInterval time.Duration
}

func NewSimCamera(settings Settings) *SimCamera {
	settings.applyDefaults()
	return &SimCamera{
		settings:      settings,
		frameInterval: 100 * time.Millisecond,
		chunkInterval: time.Second,
	}
}

// ClipName reports the filename the station should attach to uploads from
// this device.
func (c *SimCamera) ClipName() string { return "capture.flv" }

func (c *SimCamera) Open(ctx context.Context) (Stream, error) {
	s := &simStream{
		cam:     c,
		preview: NewPreviewSink(),
		stop:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.previewLoop()
	return s, nil
}

type simStream struct {
	cam     *SimCamera
	preview *PreviewSink
	stop    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	mu  sync.Mutex
	rec *simRecording
}

func (s *simStream) previewLoop() {
	defer s.wg.Done()
	w, h := s.cam.settings.Width, s.cam.settings.Height
	frame := make([]byte, w*h*4)
	ticker := time.NewTicker(s.cam.frameInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			renderGradient(frame, w, h, tick)
			s.preview.Push(frame, w, h)
			tick++
		}
	}
}

func (s *simStream) StartRecording(emit func(Chunk)) (Recording, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil && !s.rec.stopped.Load() {
		return nil, ErrRecordingActive
	}

	clip, err := newClipWriter(s.cam.settings.Framerate, s.cam.settings.BitrateKbps)
	if err != nil {
		return nil, newDeviceError("failed to start clip encoder", err)
	}
	rec := &simRecording{
		clip:     clip,
		emit:     emit,
		interval: s.cam.chunkInterval,
		errs:     make(chan error, 1),
		stop:     make(chan struct{}),
	}
	s.rec = rec
	rec.wg.Add(1)
	go rec.run()
	return rec, nil
}

func (s *simStream) Preview() *PreviewSink { return s.preview }

func (s *simStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	s.mu.Unlock()
	if rec != nil {
		rec.Stop(context.Background())
	}
	s.wg.Wait()
	return nil
}

type simRecording struct {
	clip     *clipWriter
	emit     func(Chunk)
	interval time.Duration
	errs     chan error
	stop     chan struct{}
	stopped  atomic.Bool
	wg       sync.WaitGroup
}

func (r *simRecording) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	second := 0
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			chunk, err := r.clip.WriteSecond(second)
			if err != nil {
				select {
				case r.errs <- err:
				default:
				}
				return
			}
			r.emit(chunk)
			second++
		}
	}
}

func (r *simRecording) Stop(ctx context.Context) error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	r.wg.Wait()
	// The container header is all that remains when no slice was completed.
	if chunk := r.clip.Drain(); len(chunk) > 0 {
		r.emit(chunk)
	}
	return nil
}

func (r *simRecording) Err() <-chan error { return r.errs }

func renderGradient(pix []byte, w, h, tick int) {
	for y := 0; y < h; y++ {
		row := y * w * 4
		for x := 0; x < w; x++ {
			i := row + x*4
			pix[i] = byte(x + tick)
			pix[i+1] = byte(y + tick*2)
			pix[i+2] = byte(x ^ y)
			pix[i+3] = 0xff
		}
	}
}
