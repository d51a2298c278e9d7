package capture

import (
	"bytes"

	"github.com/pkg/errors"
	flv "github.com/yutopp/go-flv"
	flvtag "github.com/yutopp/go-flv/tag"
)

// clipWriter synthesizes a video-only FLV stream one second at a time. The
// container header is written at construction, so the first drained chunk is
// a valid clip prefix on its own.
type clipWriter struct {
	buf       bytes.Buffer
	enc       *flv.Encoder
	framerate int
	frameSize int
	payload   []byte
}

func newClipWriter(framerate, bitrateKbps int) (*clipWriter, error) {
	w := &clipWriter{framerate: framerate}
	enc, err := flv.NewEncoder(&w.buf, flv.FlagsVideo)
	if err != nil {
		return nil, errors.Wrap(err, "flv encoder")
	}
	w.enc = enc

	// Size each frame so one second of tags lands near the bitrate ceiling.
	w.frameSize = bitrateKbps * 1000 / 8 / framerate
	if w.frameSize < 16 {
		w.frameSize = 16
	}
	w.payload = make([]byte, w.frameSize)
	for i := range w.payload {
		w.payload[i] = byte(i)
	}
	return w, nil
}

// WriteSecond appends one second of frame tags for the given second index and
// returns the bytes produced since the last drain.
func (w *clipWriter) WriteSecond(second int) ([]byte, error) {
	for i := 0; i < w.framerate; i++ {
		frameType := flvtag.FrameTypeInterFrame
		if i == 0 {
			frameType = flvtag.FrameTypeKeyFrame
		}
		ts := uint32(second*1000 + i*1000/w.framerate)
		err := w.enc.Encode(&flvtag.FlvTag{
			TagType:   flvtag.TagTypeVideo,
			Timestamp: ts,
			Data: &flvtag.VideoData{
				FrameType:     frameType,
				CodecID:       flvtag.CodecIDAVC,
				AVCPacketType: flvtag.AVCPacketTypeNALU,
				Data:          bytes.NewReader(w.payload),
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "flv tag encode")
		}
	}
	return w.Drain(), nil
}

// Drain returns everything written since the previous drain.
func (w *clipWriter) Drain() []byte {
	if w.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	w.buf.Reset()
	return out
}
