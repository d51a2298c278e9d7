package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstCamera captures from a physical device through GStreamer. The pipeline
// runs a live preview branch for the whole stream lifetime; each recording
// attaches an encoder branch to the tee and detaches it on stop.
//
// Pipeline: source → videoconvert → videoscale → videorate → capsfilter(RGBA)
// → tee; preview branch: queue → appsink; recording branch: queue →
// videoconvert → vp8enc → webmmux(streamable) → appsink.
type GstCamera struct {
	settings Settings
}

func NewGstCamera(settings Settings) *GstCamera {
	settings.applyDefaults()
	return &GstCamera{settings: settings}
}

// ClipName reports the filename the station should attach to uploads from
// this device.
func (c *GstCamera) ClipName() string { return "capture.webm" }

func (c *GstCamera) Open(ctx context.Context) (Stream, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, newDeviceError("failed to create pipeline", err)
	}

	var source *gst.Element
	if c.settings.VideoDevice != "" {
		source, err = gst.NewElement("v4l2src")
		if err == nil {
			source.SetProperty("device", c.settings.VideoDevice)
		}
	} else {
		source, err = gst.NewElement("autovideosrc")
	}
	if err != nil {
		return nil, newDeviceError("no camera source available", err)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, newDeviceError("failed to create videoconvert", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, newDeviceError("failed to create videoscale", err)
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, newDeviceError("failed to create videorate", err)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, newDeviceError("failed to create capsfilter", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(c.capsString()))

	tee, err := gst.NewElement("tee")
	if err != nil {
		return nil, newDeviceError("failed to create tee", err)
	}

	previewQueue, err := gst.NewElement("queue")
	if err != nil {
		return nil, newDeviceError("failed to create queue", err)
	}
	previewSink, err := app.NewAppSink()
	if err != nil {
		return nil, newDeviceError("failed to create appsink", err)
	}
	previewSink.SetProperty("sync", false)
	previewSink.SetProperty("max-buffers", 1)
	previewSink.SetProperty("drop", true)

	pipeline.AddMany(source, convert, scale, rate, capsfilter, tee, previewQueue, previewSink.Element)
	if err := gst.ElementLinkMany(source, convert, scale, rate, capsfilter, tee, previewQueue, previewSink.Element); err != nil {
		return nil, newDeviceError("failed to link pipeline", err)
	}

	s := &gstStream{
		cam:      c,
		pipeline: pipeline,
		tee:      tee,
		preview:  NewPreviewSink(),
		stop:     make(chan struct{}),
	}

	width, height := c.settings.Width, c.settings.Height
	previewSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			sample := sink.PullSample()
			if sample == nil {
				return gst.FlowOK
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			mapInfo := buffer.Map(gst.MapRead)
			data := mapInfo.Bytes()
			if len(data) > 0 {
				s.preview.Push(data, width, height)
			}
			buffer.Unmap()
			return gst.FlowOK
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, newDeviceError("failed to start camera (device busy or access denied)", err)
	}

	// A missing or permission-blocked device surfaces as an immediate bus
	// error rather than a SetState failure.
	bus := pipeline.GetPipelineBus()
	if msg := bus.TimedPop(2 * time.Second); msg != nil && msg.Type() == gst.MessageError {
		gerr := msg.ParseError()
		pipeline.SetState(gst.StateNull)
		return nil, newDeviceError("camera unavailable: "+gerr.Error(), nil)
	}

	s.wg.Add(1)
	go s.watchBus()

	log.Printf("GstCamera: device opened (%dx%d@%dfps)", width, height, c.settings.Framerate)
	return s, nil
}

func (c *GstCamera) capsString() string {
	return fmt.Sprintf("video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1",
		c.settings.Width, c.settings.Height, c.settings.Framerate)
}

type gstStream struct {
	cam      *GstCamera
	pipeline *gst.Pipeline
	tee      *gst.Element
	preview  *PreviewSink
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool

	mu  sync.Mutex
	rec *gstRecording
}

// watchBus forwards pipeline errors to the active recording so the session
// controller can route them through its stop path.
func (s *gstStream) watchBus() {
	defer s.wg.Done()
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.stop:
			return
		default:
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}
			switch msg.Type() {
			case gst.MessageEOS:
				log.Printf("GstCamera: end of stream from device")
			case gst.MessageError:
				gerr := msg.ParseError()
				log.Printf("GstCamera: pipeline error: %s", gerr.Error())
				s.mu.Lock()
				rec := s.rec
				s.mu.Unlock()
				if rec != nil {
					rec.fail(newDeviceError("recording failed: "+gerr.Error(), nil))
				}
			}
		}
	}
}

func (s *gstStream) StartRecording(emit func(Chunk)) (Recording, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil && !s.rec.stopped.Load() {
		return nil, ErrRecordingActive
	}

	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, newDeviceError("failed to create encoder queue", err)
	}
	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, newDeviceError("failed to create encoder convert", err)
	}
	encoder, err := gst.NewElement("vp8enc")
	if err != nil {
		return nil, newDeviceError("vp8 encoder not available", err)
	}
	encoder.SetProperty("target-bitrate", s.cam.settings.BitrateKbps*1000)
	encoder.SetProperty("deadline", int64(1))
	mux, err := gst.NewElement("webmmux")
	if err != nil {
		return nil, newDeviceError("webm muxer not available", err)
	}
	mux.SetProperty("streamable", true)
	sink, err := app.NewAppSink()
	if err != nil {
		return nil, newDeviceError("failed to create recording sink", err)
	}
	sink.SetProperty("sync", false)

	s.pipeline.AddMany(queue, convert, encoder, mux, sink.Element)
	if err := gst.ElementLinkMany(queue, convert, encoder, mux, sink.Element); err != nil {
		return nil, newDeviceError("failed to link recording branch", err)
	}

	teePad := s.tee.GetRequestPad("src_%u")
	if teePad == nil {
		return nil, newDeviceError("failed to request tee pad", nil)
	}
	queuePad := queue.GetStaticPad("sink")
	if ret := teePad.Link(queuePad); ret != gst.PadLinkOK {
		s.tee.ReleaseRequestPad(teePad)
		return nil, newDeviceError("failed to attach recording branch", nil)
	}

	rec := &gstRecording{
		stream:   s,
		emit:     emit,
		errs:     make(chan error, 1),
		stopCh:   make(chan struct{}),
		branch:   []*gst.Element{queue, convert, encoder, mux, sink.Element},
		teePad:   teePad,
		interval: time.Second,
	}
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(as *app.Sink) gst.FlowReturn {
			sample := as.PullSample()
			if sample == nil {
				return gst.FlowOK
			}
			buffer := sample.GetBuffer()
			if buffer == nil {
				return gst.FlowOK
			}
			mapInfo := buffer.Map(gst.MapRead)
			data := mapInfo.Bytes()
			if len(data) > 0 {
				encoded := make([]byte, len(data))
				copy(encoded, data)
				rec.append(encoded)
			}
			buffer.Unmap()
			return gst.FlowOK
		},
	})

	for _, elem := range rec.branch {
		elem.SyncStateWithParent()
	}

	s.rec = rec
	rec.wg.Add(1)
	go rec.pump()
	return rec, nil
}

func (s *gstStream) Preview() *PreviewSink { return s.preview }

func (s *gstStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	s.mu.Unlock()
	if rec != nil {
		rec.Stop(context.Background())
	}
	close(s.stop)
	s.wg.Wait()
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return newDeviceError("failed to release camera", err)
	}
	log.Printf("GstCamera: device released")
	return nil
}

// gstRecording aggregates encoded output and emits it in one-second slices.
type gstRecording struct {
	stream   *gstStream
	emit     func(Chunk)
	errs     chan error
	stopCh   chan struct{}
	stopped  atomic.Bool
	wg       sync.WaitGroup
	branch   []*gst.Element
	teePad   *gst.Pad
	interval time.Duration

	mu      sync.Mutex
	pending []byte
}

func (r *gstRecording) append(data []byte) {
	if r.stopped.Load() {
		return
	}
	r.mu.Lock()
	r.pending = append(r.pending, data...)
	r.mu.Unlock()
}

func (r *gstRecording) drain() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(pending) > 0 {
		r.emit(pending)
	}
}

func (r *gstRecording) pump() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.drain()
		}
	}
}

func (r *gstRecording) fail(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func (r *gstRecording) Stop(ctx context.Context) error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stopCh)
	r.wg.Wait()

	// Detach and dismantle the encoder branch; the preview branch keeps
	// running.
	for _, elem := range r.branch {
		elem.SetState(gst.StateNull)
	}
	r.stream.tee.ReleaseRequestPad(r.teePad)
	for _, elem := range r.branch {
		r.stream.pipeline.Remove(elem)
	}

	r.drain()
	return nil
}

func (r *gstRecording) Err() <-chan error { return r.errs }
