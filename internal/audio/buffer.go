package audio

import (
	"sync"
)

// RingBuffer keeps the most recent size bytes of audio. Writes past capacity
// overwrite the oldest data, which is what a pre-roll needs: when speech is
// detected, the buffer holds the moments just before it.
type RingBuffer struct {
	buffer []byte
	size   int
	start  int // index of the oldest byte
	count  int
	mu     sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, dropping the oldest bytes once the buffer is full.
// Returns the number of bytes dropped.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	dropped := 0
	if len(data) > rb.size {
		dropped = len(data) - rb.size
		data = data[dropped:]
	}

	for _, b := range data {
		end := (rb.start + rb.count) % rb.size
		rb.buffer[end] = b
		if rb.count == rb.size {
			rb.start = (rb.start + 1) % rb.size
			dropped++
		} else {
			rb.count++
		}
	}

	return dropped
}

// Read reads the oldest bytes into data
// Returns the number of bytes read
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := 0
	for n < len(data) && rb.count > 0 {
		data[n] = rb.buffer[rb.start]
		rb.start = (rb.start + 1) % rb.size
		rb.count--
		n++
	}
	return n
}

// Drain returns everything buffered, oldest first, and empties the buffer.
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.count)
	for i := range out {
		out[i] = rb.buffer[(rb.start+i)%rb.size]
	}
	rb.start = 0
	rb.count = 0
	return out
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Clear clears the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.start = 0
	rb.count = 0
}

// IsFull returns true if the next write will overwrite data
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count == rb.size
}
