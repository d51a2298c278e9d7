package scan

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalscan/internal/capture"
)

// ControllerOptions tune the session lifecycle. Zero values fall back to a
// 30 second capture and a 150ms settle delay.
type ControllerOptions struct {
	DurationSeconds int
	SettleDelay     time.Duration
}

// Controller drives the capture session state machine. At most one cycle is
// in flight at a time: Start is rejected while a session records or its
// result is still processing. Stopping is idempotent across its three
// triggers (timer deadline, user request, device error); exactly one caller
// performs the device teardown and chunk handoff.
type Controller struct {
	opts     ControllerOptions
	state    *StateStore
	pipeline *Pipeline

	tick time.Duration

	mu         sync.Mutex
	camera     capture.Camera
	simCamera  capture.Camera
	active     capture.Camera
	stream     capture.Stream
	phase      Phase
	processing bool
	demoMode   bool
	sess       *session
}

// session is the per-recording state. done tells the device watcher the
// session ended on its own terms.
type session struct {
	id       string
	clipName string
	buffer   *capture.ChunkBuffer
	timer    *SessionTimer
	rec      capture.Recording
	done     chan struct{}
}

func NewController(camera, sim capture.Camera, pipeline *Pipeline, state *StateStore, opts ControllerOptions) *Controller {
	if opts.DurationSeconds <= 0 {
		opts.DurationSeconds = 30
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 150 * time.Millisecond
	}
	return &Controller{
		opts:      opts,
		state:     state,
		pipeline:  pipeline,
		tick:      time.Second,
		camera:    camera,
		simCamera: sim,
		phase:     PhaseIdle,
	}
}

// AcquireDevice opens the capture device ahead of the first session so the
// preview is live before anyone records. Safe to call again after a failure.
func (c *Controller) AcquireDevice(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquireLocked(ctx)
}

func (c *Controller) acquireLocked(ctx context.Context) error {
	if c.stream != nil {
		return nil
	}
	cam := c.camera
	if c.demoMode && c.simCamera != nil {
		cam = c.simCamera
	}
	if cam == nil {
		err := fmt.Errorf("no capture device configured")
		c.state.SetDeviceReady(false)
		c.state.SetError(ErrKindDevice, err.Error())
		return err
	}
	stream, err := cam.Open(ctx)
	if err != nil {
		c.state.SetDeviceReady(false)
		c.state.SetError(ErrKindDevice, err.Error())
		return err
	}
	c.stream = stream
	c.active = cam
	c.state.SetDeviceReady(true)
	c.state.ClearError()
	log.Printf("Controller: capture device acquired")
	return nil
}

// Start begins a new capture session and returns its id. ErrBusy when a
// cycle is already in flight, ErrDeviceNotReady when the device cannot
// record.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.phase != PhaseIdle || c.processing {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if c.stream == nil {
		if err := c.acquireLocked(ctx); err != nil {
			c.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDeviceNotReady, err)
		}
	}

	sess := &session{
		id:       uuid.New().String(),
		clipName: c.active.ClipName(),
		buffer:   capture.NewChunkBuffer(),
		done:     make(chan struct{}),
	}
	rec, err := c.stream.StartRecording(sess.buffer.Append)
	if err != nil {
		c.state.SetError(ErrKindDevice, err.Error())
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDeviceNotReady, err)
	}
	sess.rec = rec
	sess.timer = newSessionTimer(c.opts.DurationSeconds, c.tick,
		func(elapsed int) { c.onTick(sess, elapsed) },
		func() { c.ForceStop(StopDeadline) },
	)
	c.phase = PhaseRecording
	c.sess = sess
	c.state.SetRecording(sess.id, true)
	c.mu.Unlock()

	sess.timer.Start()
	go c.watchDevice(sess)
	log.Printf("Controller: session %s recording started", sess.id)
	return sess.id, nil
}

// onTick publishes elapsed seconds for the session that is still the active
// recording. Ticks from a session already being torn down are dropped.
func (c *Controller) onTick(sess *session, elapsed int) {
	c.mu.Lock()
	live := c.sess == sess && c.phase == PhaseRecording
	c.mu.Unlock()
	if live {
		c.state.SetElapsed(elapsed)
	}
}

// ForceStop ends the active recording. The first caller wins and performs
// the whole teardown; later callers and repeat triggers return immediately.
func (c *Controller) ForceStop(reason StopReason) {
	c.mu.Lock()
	if c.phase != PhaseRecording || c.sess == nil {
		c.mu.Unlock()
		return
	}
	sess := c.sess
	c.phase = PhaseStopping
	c.mu.Unlock()

	log.Printf("Controller: session %s stopping (%s)", sess.id, reason)
	close(sess.done)
	sess.timer.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sess.rec.Stop(stopCtx); err != nil {
		log.Printf("Controller: device stop failed: %v", err)
	}
	cancel()

	// Let the device flush its final fragment before the handoff.
	time.Sleep(c.opts.SettleDelay)
	chunks := sess.buffer.TakeAll()
	var total int
	for _, chunk := range chunks {
		total += len(chunk)
	}

	c.mu.Lock()
	c.phase = PhaseIdle
	c.sess = nil
	launch := total > 0
	if launch {
		c.processing = true
	}
	c.mu.Unlock()

	c.state.SetRecording(sess.id, false)
	if launch {
		c.state.SetProcessing(true)
		go c.runPipeline(sess.id, sess.clipName, chunks)
	} else {
		c.state.SetError(ErrKindEmptyCapture, "recording produced no data")
		log.Printf("Controller: session %s produced no data", sess.id)
	}
}

// runPipeline processes the captured chunks in the background. Analysis is
// never cancelled mid-flight, so the context is fresh rather than tied to
// the request that stopped the session.
func (c *Controller) runPipeline(sessionID, clipName string, chunks []capture.Chunk) {
	if _, _, err := c.pipeline.Process(context.Background(), sessionID, clipName, chunks); err != nil {
		log.Printf("Controller: session %s pipeline failed: %v", sessionID, err)
	}
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
	c.state.SetProcessing(false)
}

// watchDevice ends the session when the device reports a mid-recording
// failure. A nil error means the recording closed normally.
func (c *Controller) watchDevice(sess *session) {
	select {
	case <-sess.done:
		return
	case err := <-sess.rec.Err():
		if err == nil {
			return
		}
		log.Printf("Controller: session %s device error: %v", sess.id, err)
		c.state.SetError(ErrKindDevice, err.Error())
		c.ForceStop(StopDeviceError)
	}
}

// SetDemoMode switches between the real and simulated camera. The current
// stream is released and the replacement opened immediately so the preview
// keeps running.
func (c *Controller) SetDemoMode(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle || c.processing {
		return ErrBusy
	}
	if c.demoMode == enabled {
		return nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			log.Printf("Controller: failed to release device: %v", err)
		}
		c.stream = nil
		c.active = nil
	}
	c.demoMode = enabled
	c.state.SetDemoMode(enabled)
	return c.acquireLocked(ctx)
}

// Preview returns the live preview sink, or nil while no device is open.
// The sink outlives individual recordings.
func (c *Controller) Preview() *capture.PreviewSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	return c.stream.Preview()
}

// Close stops any active session and releases the capture device.
func (c *Controller) Close() error {
	c.ForceStop(StopShutdown)

	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.active = nil
	c.mu.Unlock()

	c.state.SetDeviceReady(false)
	if stream != nil {
		if err := stream.Close(); err != nil {
			return fmt.Errorf("failed to release capture device: %w", err)
		}
	}
	return nil
}
