package capture

import "sync"

// ChunkBuffer accumulates the fragments emitted during one recording.
// Device callbacks append concurrently with controller reads; the buffered
// fragments are consumed exactly once via TakeAll.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks []Chunk
	total  int64
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append adds one fragment to the buffer. The buffer takes ownership of the
// slice; callers must not reuse it.
func (b *ChunkBuffer) Append(c Chunk) {
	if len(c) == 0 {
		return
	}
	b.mu.Lock()
	b.chunks = append(b.chunks, c)
	b.total += int64(len(c))
	b.mu.Unlock()
}

// Len reports the number of buffered fragments.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// TotalBytes reports the summed size of all buffered fragments.
func (b *ChunkBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// TakeAll returns the buffered fragments in arrival order and clears the
// buffer. A second call returns nil until new fragments arrive.
func (b *ChunkBuffer) TakeAll() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	chunks := b.chunks
	b.chunks = nil
	b.total = 0
	return chunks
}

// Reset discards everything buffered so far.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	b.chunks = nil
	b.total = 0
	b.mu.Unlock()
}
