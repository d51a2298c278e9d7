package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNoFrame is returned by JPEG before the first preview frame arrives.
var ErrNoFrame = errors.New("capture: no preview frame available")

// PreviewSink holds the most recent raw preview frame pushed by a device.
// Frames are stored as RGBA pixels and encoded to JPEG on demand, so idle
// previews cost nothing beyond the copy.
type PreviewSink struct {
	mu      sync.RWMutex
	pix     []byte
	width   int
	height  int
	updated time.Time
}

func NewPreviewSink() *PreviewSink {
	return &PreviewSink{}
}

// Push stores one RGBA frame. The sink copies pix; callers may reuse the
// slice.
func (p *PreviewSink) Push(pix []byte, width, height int) {
	if len(pix) < width*height*4 {
		return
	}
	p.mu.Lock()
	if cap(p.pix) < len(pix) {
		p.pix = make([]byte, len(pix))
	}
	p.pix = p.pix[:len(pix)]
	copy(p.pix, pix)
	p.width = width
	p.height = height
	p.updated = time.Now()
	p.mu.Unlock()
}

// JPEG encodes the latest frame. It fails with ErrNoFrame before any frame
// has been pushed.
func (p *PreviewSink) JPEG() ([]byte, error) {
	p.mu.RLock()
	if p.width == 0 || p.height == 0 {
		p.mu.RUnlock()
		return nil, ErrNoFrame
	}
	img := &image.RGBA{
		Pix:    append([]byte(nil), p.pix...),
		Stride: p.width * 4,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}
	p.mu.RUnlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, errors.Wrap(err, "capture: preview encode failed")
	}
	return buf.Bytes(), nil
}

// LastUpdate reports when the latest frame arrived; zero before the first
// frame.
func (p *PreviewSink) LastUpdate() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}
