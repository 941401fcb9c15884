package orchestration

import "sync"

// fragmentBuffer hands reply fragments from the machine loop to the speech
// synthesis worker without blocking the loop. It has a single consumer.
type fragmentBuffer struct {
	mu        sync.Mutex
	fragments []string
	consumed  int
	complete  bool
	cleared   bool

	updateSignal chan struct{}
}

func newFragmentBuffer() *fragmentBuffer {
	return &fragmentBuffer{updateSignal: make(chan struct{}, 1)}
}

func (b *fragmentBuffer) Add(fragment string) {
	b.mu.Lock()
	if b.complete || b.cleared {
		b.mu.Unlock()
		return
	}
	b.fragments = append(b.fragments, fragment)
	b.mu.Unlock()
	b.signalUpdate()
}

// Complete marks that no more fragments follow.
func (b *fragmentBuffer) Complete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Fragments yields fragments as they are added. It returns once the buffer
// is complete and drained, or as soon as it is cleared.
func (b *fragmentBuffer) Fragments(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.consumed < len(b.fragments) {
			fragment := b.fragments[b.consumed]
			b.fragments[b.consumed] = ""
			b.consumed++
			b.mu.Unlock()
			if !yield(fragment) {
				return
			}
			continue
		}

		if b.complete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

// Clear drops pending fragments and releases the consumer.
func (b *fragmentBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.fragments = nil
	b.consumed = 0
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *fragmentBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
