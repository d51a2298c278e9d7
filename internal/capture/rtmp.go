package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	flv "github.com/yutopp/go-flv"
	flvtag "github.com/yutopp/go-flv/tag"
	rtmp "github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

// RTMPCamera accepts video from a network publisher instead of a local
// device. A kiosk companion app (or OBS) publishes to rtmp://station:port
// with the configured stream key; incoming video tags are remuxed into an
// FLV clip while a recording is active and discarded otherwise. Audio is
// always dropped, the capture is video only.
//
// The RTMP ingest has no decode stage, so the preview sink stays empty.
type RTMPCamera struct {
	port int
	key  string
}

func NewRTMPCamera(port int, key string) *RTMPCamera {
	return &RTMPCamera{port: port, key: key}
}

func (c *RTMPCamera) ClipName() string { return "capture.flv" }

func (c *RTMPCamera) Open(ctx context.Context) (Stream, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", c.port))
	if err != nil {
		return nil, newDeviceError(fmt.Sprintf("rtmp port %d unavailable", c.port), err)
	}

	s := &rtmpStream{
		cam:      c,
		listener: listener,
		preview:  NewPreviewSink(),
	}

	srv := rtmp.NewServer(&rtmp.ServerConfig{
		OnConnect: func(conn net.Conn) (io.ReadWriteCloser, *rtmp.ConnConfig) {
			return conn, &rtmp.ConnConfig{
				Handler: &publishHandler{stream: s, conn: conn},
			}
		},
	})

	go func() {
		if err := srv.Serve(listener); err != nil && !s.closed.Load() {
			log.Printf("RTMPCamera: server stopped: %v", err)
		}
	}()

	log.Printf("RTMPCamera: listening on port %d", c.port)
	return s, nil
}

type rtmpStream struct {
	cam      *RTMPCamera
	listener net.Listener
	preview  *PreviewSink
	closed   atomic.Bool

	mu        sync.Mutex
	rec       *rtmpRecording
	publisher *publishHandler
}

func (s *rtmpStream) StartRecording(emit func(Chunk)) (Recording, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil && !s.rec.stopped.Load() {
		return nil, ErrRecordingActive
	}
	rec := &rtmpRecording{
		emit:     emit,
		errs:     make(chan error, 1),
		stopCh:   make(chan struct{}),
		interval: time.Second,
	}
	s.rec = rec
	rec.wg.Add(1)
	go rec.pump()
	return rec, nil
}

func (s *rtmpStream) Preview() *PreviewSink { return s.preview }

func (s *rtmpStream) Close() error {
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
	if err := s.listener.Close(); err != nil {
		return fmt.Errorf("failed to close rtmp listener: %w", err)
	}
	log.Printf("RTMPCamera: listener closed")
	return nil
}

func (s *rtmpStream) setPublisher(h *publishHandler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher != nil && s.publisher != h {
		return false
	}
	s.publisher = h
	return true
}

func (s *rtmpStream) clearPublisher(h *publishHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher == h {
		s.publisher = nil
	}
}

func (s *rtmpStream) activeRecording() *rtmpRecording {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.stopped.Load() {
		return nil
	}
	return s.rec
}

// publishHandler validates the stream key and feeds published media into
// the active recording.
type publishHandler struct {
	rtmp.DefaultHandler
	stream *rtmpStream
	conn   net.Conn
	name   string
}

func (h *publishHandler) OnPublish(ctx *rtmp.StreamContext, timestamp uint32, cmd *rtmpmsg.NetStreamPublish) error {
	if cmd.PublishingName != h.stream.cam.key {
		return errors.New("rtmp: invalid stream key")
	}
	if !h.stream.setPublisher(h) {
		return errors.New("rtmp: another publisher is active")
	}
	h.name = cmd.PublishingName
	log.Printf("RTMPCamera: publisher connected (stream %q)", h.name)
	return nil
}

func (h *publishHandler) OnVideo(timestamp uint32, payload io.Reader) error {
	rec := h.stream.activeRecording()
	if rec == nil {
		return nil
	}
	return rec.writeVideo(timestamp, payload)
}

func (h *publishHandler) OnAudio(timestamp uint32, payload io.Reader) error {
	// Video-only capture; audio never reaches the clip.
	_, err := io.Copy(io.Discard, payload)
	return err
}

func (h *publishHandler) OnClose() {
	h.stream.clearPublisher(h)
	if h.name != "" {
		log.Printf("RTMPCamera: publisher disconnected (stream %q)", h.name)
	}
}

// rtmpRecording remuxes published video tags into an FLV clip and emits it
// in one-second slices. The encoder is created on the first tag, so a
// session with no publisher produces zero bytes.
type rtmpRecording struct {
	emit     func(Chunk)
	errs     chan error
	stopCh   chan struct{}
	stopped  atomic.Bool
	wg       sync.WaitGroup
	interval time.Duration

	mu  sync.Mutex
	buf bytes.Buffer
	enc *flv.Encoder
}

func (r *rtmpRecording) ensureEncoder() error {
	if r.enc != nil {
		return nil
	}
	enc, err := flv.NewEncoder(&r.buf, flv.FlagsVideo)
	if err != nil {
		return errors.Wrap(err, "failed to create flv encoder")
	}
	r.enc = enc
	return nil
}

func (r *rtmpRecording) writeVideo(timestamp uint32, payload io.Reader) error {
	var video flvtag.VideoData
	if err := flvtag.DecodeVideoData(payload, &video); err != nil {
		return errors.Wrap(err, "failed to decode video payload")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped.Load() {
		return nil
	}
	if err := r.ensureEncoder(); err != nil {
		return err
	}
	return errors.Wrap(r.enc.Encode(&flvtag.FlvTag{
		TagType:   flvtag.TagTypeVideo,
		Timestamp: timestamp,
		Data:      &video,
	}), "failed to write video tag")
}

func (r *rtmpRecording) drain() {
	r.mu.Lock()
	var chunk []byte
	if r.buf.Len() > 0 {
		chunk = make([]byte, r.buf.Len())
		copy(chunk, r.buf.Bytes())
		r.buf.Reset()
	}
	r.mu.Unlock()
	if len(chunk) > 0 {
		r.emit(chunk)
	}
}

func (r *rtmpRecording) pump() {
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

func (r *rtmpRecording) Stop(ctx context.Context) error {
	if !r.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stopCh)
	r.wg.Wait()
	r.drain()
	return nil
}

func (r *rtmpRecording) Err() <-chan error { return r.errs }
