// Package queue implements the unbounded FIFO shared by the discoverer and
// the refresh workers.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO of file ids. A pump goroutine moves items from
// the input channel into a slice and from the slice to the output channel,
// so Enqueue never waits on capacity and Dequeue suspends while empty.
type Queue struct {
	in      chan string
	out     chan string
	done    chan struct{}
	stopped chan struct{}
	pending atomic.Int64
	once    sync.Once
}

// New creates a queue and starts its pump
func New() *Queue {
	q := &Queue{
		in:      make(chan string),
		out:     make(chan string),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *Queue) pump() {
	defer close(q.stopped)

	var buf []string
	for {
		var out chan string
		var next string
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		select {
		case id := <-q.in:
			buf = append(buf, id)
		case out <- next:
			buf[0] = ""
			buf = buf[1:]
		case <-q.done:
			return
		}
	}
}

// Enqueue appends a file id. It reports false once the queue is closed.
func (q *Queue) Enqueue(id string) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	q.pending.Add(1)
	select {
	case q.in <- id:
		return true
	case <-q.done:
		q.pending.Add(-1)
		return false
	}
}

// Dequeue blocks until an id is available, the context ends or the queue
// is closed.
func (q *Queue) Dequeue(ctx context.Context) (string, bool) {
	select {
	case id := <-q.out:
		q.pending.Add(-1)
		return id, true
	case <-ctx.Done():
		return "", false
	case <-q.done:
		return "", false
	}
}

// Len returns the number of ids enqueued and not yet dequeued
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

// Close stops the pump and drops pending ids; it is safe to call twice
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		<-q.stopped
	})
}
