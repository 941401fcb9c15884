package orchestration

import (
	"slices"
	"testing"
	"time"
)

func collectFragments(buffer *fragmentBuffer) <-chan []string {
	result := make(chan []string, 1)
	go func() {
		var fragments []string
		for fragment := range buffer.Fragments {
			fragments = append(fragments, fragment)
		}
		result <- fragments
	}()
	return result
}

func TestFragmentBufferYieldsUntilComplete(t *testing.T) {
	buffer := newFragmentBuffer()
	result := collectFragments(buffer)

	buffer.Add("one ")
	buffer.Add("two")
	buffer.Complete()
	buffer.Add("late")

	select {
	case fragments := <-result:
		if want := []string{"one ", "two"}; !slices.Equal(fragments, want) {
			t.Fatalf("expected %q, got %q", want, fragments)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fragments")
	}
}

func TestFragmentBufferClearReleasesConsumer(t *testing.T) {
	buffer := newFragmentBuffer()
	buffer.Add("one")
	result := collectFragments(buffer)

	// the consumer blocks waiting for more
	time.Sleep(20 * time.Millisecond)
	buffer.Clear()
	buffer.Add("two")

	select {
	case fragments := <-result:
		if len(fragments) > 1 {
			t.Fatalf("expected nothing after clear, got %q", fragments)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for consumer to stop")
	}
}
