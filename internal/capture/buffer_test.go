package capture

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkBufferTakeAllConsumesOnce(t *testing.T) {
	b := NewChunkBuffer()
	b.Append(Chunk{1, 2, 3})
	b.Append(Chunk{4, 5})
	require.Equal(t, 2, b.Len())
	require.Equal(t, int64(5), b.TotalBytes())

	chunks := b.TakeAll()
	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{1, 2, 3}, chunks[0])
	assert.Equal(t, Chunk{4, 5}, chunks[1])

	assert.Nil(t, b.TakeAll(), "second take must return nothing")
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(0), b.TotalBytes())
}

func TestChunkBufferSkipsEmptyFragments(t *testing.T) {
	b := NewChunkBuffer()
	b.Append(nil)
	b.Append(Chunk{})
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(0), b.TotalBytes())
}

func TestChunkBufferReset(t *testing.T) {
	b := NewChunkBuffer()
	b.Append(Chunk{9, 9, 9})
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, int64(0), b.TotalBytes())
	assert.Nil(t, b.TakeAll())
}

func TestChunkBufferConcurrentAppends(t *testing.T) {
	b := NewChunkBuffer()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(Chunk{byte(i)})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, b.Len())
	assert.Equal(t, int64(800), b.TotalBytes())
}
