package orchestration

import (
	"sync"
	"sync/atomic"
)

// fence guards the path from a streaming stage into the machine loop. Once
// cancel returns no further input of that stage reaches the loop, including
// one that was being delivered concurrently.
type fence struct {
	mu      sync.Mutex
	stopped atomic.Bool
	stop    chan struct{}
	once    sync.Once

	out  chan<- input
	done <-chan struct{}
}

func newFence(out chan<- input, done <-chan struct{}) *fence {
	return &fence{out: out, done: done, stop: make(chan struct{})}
}

// emit delivers in to the loop and reports whether it was delivered.
func (f *fence) emit(in input) bool {
	if f.stopped.Load() {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped.Load() {
		return false
	}

	select {
	case f.out <- in:
		return true
	case <-f.stop:
		return false
	case <-f.done:
		return false
	}
}

// cancel closes the fence and waits for an in-flight emit to give up.
func (f *fence) cancel() {
	f.once.Do(func() {
		f.stopped.Store(true)
		close(f.stop)
	})

	// emit holds the lock for the whole delivery
	f.mu.Lock()
	f.mu.Unlock()
}

func (f *fence) isCancelled() bool {
	return f.stopped.Load()
}
