// Package soundqueue provides the bounded sample queue between the emulation
// goroutine and the audio device.
//
// The emulator writes blocks of samples and blocks while the queue is full,
// which paces emulation to the device. The device side never blocks: Read
// returns whatever is queued and Stream pads underruns with silence.
package soundqueue

import (
	"errors"
	"fmt"
	"sync"
)

// Queue errors.
var (
	ErrInvalidCapacity = errors.New("invalid queue capacity")
	ErrClosed          = errors.New("queue closed")
)

// Queue is a bounded FIFO of 16-bit samples for one producer and one consumer.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond // Signalled when space is freed or the queue closes

	buf    []int16 // Ring storage
	head   int     // Index of the oldest sample
	count  int     // Samples queued
	closed bool
}

// New creates a queue holding up to capacity samples.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	q := &Queue{buf: make([]int16, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Write copies samples into the queue, waiting for the consumer whenever the
// queue is full. Returns ErrClosed if the queue is closed before every sample
// was queued.
func (q *Queue) Write(samples []int16) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(samples) > 0 {
		for q.count == len(q.buf) && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			return ErrClosed
		}

		// Copy up to the end of the free region, wrapping once
		tail := (q.head + q.count) % len(q.buf)
		n := min(len(samples), len(q.buf)-q.count, len(q.buf)-tail)
		copy(q.buf[tail:tail+n], samples[:n])
		q.count += n
		samples = samples[n:]
	}
	return nil
}

// Read moves up to len(out) of the oldest samples into out without waiting.
// Returns the number of samples copied.
func (q *Queue) Read(out []int16) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for total < len(out) && q.count > 0 {
		n := min(len(out)-total, q.count, len(q.buf)-q.head)
		copy(out[total:total+n], q.buf[q.head:q.head+n])
		q.head = (q.head + n) % len(q.buf)
		q.count -= n
		total += n
	}

	if total > 0 {
		q.cond.Broadcast()
	}
	return total
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity in samples.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Reset discards all queued samples.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.count = 0
	q.cond.Broadcast()
}

// Close wakes a blocked writer and makes further writes fail.
// Queued samples remain readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
