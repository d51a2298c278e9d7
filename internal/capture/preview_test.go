package capture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewSinkBeforeFirstFrame(t *testing.T) {
	p := NewPreviewSink()
	_, err := p.JPEG()
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.True(t, p.LastUpdate().IsZero())
}

func TestPreviewSinkEncodesLatestFrame(t *testing.T) {
	p := NewPreviewSink()
	w, h := 8, 6
	pix := make([]byte, w*h*4)
	renderGradient(pix, w, h, 3)
	p.Push(pix, w, h)

	img, err := p.JPEG()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte{0xff, 0xd8}))
	assert.False(t, p.LastUpdate().IsZero())
}

func TestPreviewSinkIgnoresShortFrames(t *testing.T) {
	p := NewPreviewSink()
	p.Push(make([]byte, 10), 8, 6)
	_, err := p.JPEG()
	assert.ErrorIs(t, err, ErrNoFrame)
}
