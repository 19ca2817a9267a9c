package push

import (
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 100

// SendQueue is the bounded admission queue shared by every backend that
// delivers over a pooled connection. Each backend owns its own instance;
// there is no cross-backend queue. A job counts as outstanding from
// submission until it returns, so Idle only reports true once submitted
// work has fully drained.
type SendQueue struct {
	jobs      chan func()
	pending   atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
}

// NewSendQueue creates a queue bounded to maxQueueSize outstanding jobs
// and starts its drain goroutine. A zero bound selects a default.
func NewSendQueue(maxQueueSize uint) *SendQueue {
	if maxQueueSize == 0 {
		maxQueueSize = defaultQueueSize
	}
	q := &SendQueue{
		jobs: make(chan func(), maxQueueSize),
		done: make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *SendQueue) drain() {
	for {
		select {
		case job := <-q.jobs:
			job()
			q.pending.Add(-1)
		case <-q.done:
			return
		}
	}
}

// Submit enqueues one delivery job. It never blocks: when the bound is
// reached the job is rejected with ErrQueueFull.
func (q *SendQueue) Submit(job func()) error {
	q.pending.Add(1)
	select {
	case q.jobs <- job:
		return nil
	default:
		q.pending.Add(-1)
		return ErrQueueFull
	}
}

// Idle reports whether no submitted job is queued or running.
func (q *SendQueue) Idle() bool {
	return q.pending.Load() == 0
}

// Close stops the drain goroutine. Queued jobs are abandoned; the queue
// must not be submitted to afterwards.
func (q *SendQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
