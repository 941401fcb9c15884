package orchestration

import (
	"errors"
	"slices"
	"testing"

	"github.com/koscakluka/ema-tota/core/events"
)

func TestEventBusDeliversInRegistrationOrder(t *testing.T) {
	var bus eventBus
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		if err := bus.Subscribe(ObserverFunc(func(events.Event) error {
			order = append(order, name)
			return nil
		})); err != nil {
			t.Fatalf("expected subscribe to succeed, got %v", err)
		}
	}

	bus.Publish(events.NewSessionEnded())

	if want := []string{"first", "second", "third"}; !slices.Equal(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
}

func TestEventBusIsolatesFailingObservers(t *testing.T) {
	var bus eventBus
	delivered := 0
	_ = bus.Subscribe(ObserverFunc(func(events.Event) error { panic("boom") }))
	_ = bus.Subscribe(ObserverFunc(func(events.Event) error { return errors.New("failed") }))
	_ = bus.Subscribe(ObserverFunc(func(events.Event) error {
		delivered++
		return nil
	}))

	bus.Publish(events.NewSessionEnded())
	bus.Publish(events.NewSessionEnded())

	if delivered != 2 {
		t.Fatalf("expected the healthy observer to get both events, got %d", delivered)
	}
}

func TestEventBusSealRejectsSubscribers(t *testing.T) {
	var bus eventBus
	bus.seal()

	if err := bus.Subscribe(ObserverFunc(func(events.Event) error { return nil })); !errors.Is(err, ErrBusSealed) {
		t.Fatalf("expected ErrBusSealed, got %v", err)
	}
	if err := bus.Subscribe(nil); err != nil {
		t.Fatalf("expected nil observer to be ignored, got %v", err)
	}
}

func TestEventBusSessionSubscribeIgnoresSeal(t *testing.T) {
	var bus eventBus
	bus.seal()
	delivered := 0
	bus.subscribe(ObserverFunc(func(events.Event) error {
		delivered++
		return nil
	}))
	bus.subscribe(nil)

	bus.Publish(events.NewSessionEnded())

	if delivered != 1 {
		t.Fatalf("expected the session observer to get the event, got %d", delivered)
	}
}

func TestSafeInvokeRecoversPanic(t *testing.T) {
	err := safeInvoke(ObserverFunc(func(events.Event) error { panic("boom") }), events.NewSessionEnded())
	if err == nil {
		t.Fatalf("expected panic to be turned into an error")
	}
}
