package orchestration

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-tota/core/events"
)

var ErrBusSealed = errors.New("observers can not be added after the session started")

// Observer receives every session event. Observers run synchronously on the
// session loop, so a slow observer delays the conversation.
type Observer interface {
	OnEvent(event events.Event) error
}

// ObserverFunc adapts a plain function to [Observer].
type ObserverFunc func(event events.Event) error

func (f ObserverFunc) OnEvent(event events.Event) error { return f(event) }

// eventBus fans events out to observers in registration order. Observers are
// fixed once the bus is sealed.
type eventBus struct {
	mu        sync.Mutex
	observers []Observer
	sealed    bool
}

func (b *eventBus) Subscribe(observer Observer) error {
	if observer == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrBusSealed
	}
	b.observers = append(b.observers, observer)
	return nil
}

// subscribe adds observer even to a sealed bus. The session uses it for its
// own observers while it starts.
func (b *eventBus) subscribe(observer Observer) {
	if observer == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, observer)
}

func (b *eventBus) seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

// Publish hands event to every observer. A failing observer is logged and
// skipped.
func (b *eventBus) Publish(event events.Event) {
	b.mu.Lock()
	observers := b.observers
	b.mu.Unlock()

	for i, observer := range observers {
		if err := safeInvoke(observer, event); err != nil {
			logger.Error("observer failed",
				"observer", i,
				"event", string(event.Kind()),
				"error", err)
		}
	}
}

func safeInvoke(observer Observer, event events.Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("observer panicked: %v", recovered)
		}
	}()
	return observer.OnEvent(event)
}
