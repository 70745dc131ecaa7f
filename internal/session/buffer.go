package session

import (
	"fmt"
	"sync"
	"time"
)

// Chunk is one opaque audio segment queued for delivery to the backend.
type Chunk struct {
	Seq      uint64
	Data     []byte
	Captured time.Time
}

// ChunkBuffer holds audio chunks captured while the channel is not yet
// established or mid-reconnect. It enforces a byte cap by evicting the
// oldest chunks first; a single chunk larger than the cap is rejected
// outright and clears the buffer, since the recording's prefix would be
// useless without it.
type ChunkBuffer struct {
	maxBytes int64

	chunks []Chunk
	bytes  int64

	// Statistics
	pushed       uint64
	evicted      uint64
	evictedBytes uint64
	overflows    uint64

	mu sync.Mutex
}

// ChunkBufferStats represents buffer statistics for monitoring.
type ChunkBufferStats struct {
	Chunks       int    `json:"chunks"`
	Bytes        int64  `json:"bytes"`
	MaxBytes     int64  `json:"max_bytes"`
	Pushed       uint64 `json:"pushed"`
	Evicted      uint64 `json:"evicted"`
	EvictedBytes uint64 `json:"evicted_bytes"`
	Overflows    uint64 `json:"overflows"`
}

// NewChunkBuffer creates a buffer bounded to maxBytes of chunk data.
func NewChunkBuffer(maxBytes int64) (*ChunkBuffer, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("buffer limit must be positive, got %d", maxBytes)
	}
	return &ChunkBuffer{maxBytes: maxBytes}, nil
}

// Push queues a chunk. When the cap would be exceeded it evicts the oldest
// chunks until the new one fits and reports how many were dropped. ok is
// false when the chunk alone exceeds the cap: the buffer is cleared, the
// chunk is not queued, and the caller should surface a buffer overflow.
func (b *ChunkBuffer) Push(chunk Chunk) (evicted int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := int64(len(chunk.Data))
	if size > b.maxBytes {
		b.overflows++
		b.evicted += uint64(len(b.chunks))
		b.evictedBytes += uint64(b.bytes)
		b.chunks = nil
		b.bytes = 0
		return 0, false
	}

	for b.bytes+size > b.maxBytes && len(b.chunks) > 0 {
		oldest := b.chunks[0]
		b.chunks = b.chunks[1:]
		b.bytes -= int64(len(oldest.Data))
		b.evicted++
		b.evictedBytes += uint64(len(oldest.Data))
		evicted++
	}

	b.chunks = append(b.chunks, chunk)
	b.bytes += size
	b.pushed++
	return evicted, true
}

// Drain removes and returns every buffered chunk in capture order.
func (b *ChunkBuffer) Drain() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return nil
	}
	drained := b.chunks
	b.chunks = nil
	b.bytes = 0
	return drained
}

// Requeue puts chunks back at the front of the buffer, ahead of anything
// buffered since they were drained. Used when a flush is interrupted
// mid-stream. The cap still holds: oldest requeued chunks are evicted first.
func (b *ChunkBuffer) Requeue(chunks []Chunk) (evicted int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunks) == 0 {
		return 0
	}

	merged := make([]Chunk, 0, len(chunks)+len(b.chunks))
	merged = append(merged, chunks...)
	merged = append(merged, b.chunks...)

	var total int64
	for _, chunk := range merged {
		total += int64(len(chunk.Data))
	}
	for total > b.maxBytes && len(merged) > 0 {
		oldest := merged[0]
		merged = merged[1:]
		total -= int64(len(oldest.Data))
		b.evicted++
		b.evictedBytes += uint64(len(oldest.Data))
		evicted++
	}

	b.chunks = merged
	b.bytes = total
	return evicted
}

// Len returns the number of buffered chunks.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Bytes returns the buffered payload size.
func (b *ChunkBuffer) Bytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// GetStats returns current buffer statistics.
func (b *ChunkBuffer) GetStats() ChunkBufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ChunkBufferStats{
		Chunks:       len(b.chunks),
		Bytes:        b.bytes,
		MaxBytes:     b.maxBytes,
		Pushed:       b.pushed,
		Evicted:      b.evicted,
		EvictedBytes: b.evictedBytes,
		Overflows:    b.overflows,
	}
}
