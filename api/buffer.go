// File: api/buffer.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Buffer and BufferPool, adapted from the teacher's NUMA-aware pool down to
// the shape this spec actually needs: reusable byte slices for incremental
// parser prefixes and frame payloads, without per-NUMA-node accounting.

package api

// Releaser returns a Buffer to the pool that produced it.
type Releaser interface {
	Put(Buffer)
}

// Buffer is a reusable byte slice with a back-reference to its owning pool.
type Buffer struct {
	Data []byte
	Pool Releaser
}

// Bytes returns the backing slice.
func (b Buffer) Bytes() []byte { return b.Data }

// Release returns the buffer to its pool, if any.
func (b Buffer) Release() {
	if b.Pool != nil {
		b.Pool.Put(b)
	}
}

// BufferPoolStats summarizes pool usage for the Control/debug surface.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}

// BufferPool provides reusable byte buffers sized on demand.
type BufferPool interface {
	Get(size int) Buffer
	Put(b Buffer)
	Stats() BufferPoolStats
}
