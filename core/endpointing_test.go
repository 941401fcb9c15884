package orchestration

import (
	"sync"
	"testing"
	"time"
)

type expiryRecorder struct {
	mu          sync.Mutex
	generations []uint64
}

func (r *expiryRecorder) record(generation uint64) {
	r.mu.Lock()
	r.generations = append(r.generations, generation)
	r.mu.Unlock()
}

func (r *expiryRecorder) fired() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.generations...)
}

func TestEndpointDetectorFiresOnceAfterLastArm(t *testing.T) {
	clock := newFakeClock()
	recorder := &expiryRecorder{}
	detector := newEndpointDetector(clock, 70*time.Millisecond, recorder.record)

	detector.Arm()
	clock.Advance(30 * time.Millisecond)
	detector.Arm()
	clock.Advance(30 * time.Millisecond)
	last := detector.Arm()

	clock.Advance(69 * time.Millisecond)
	if got := recorder.fired(); len(got) != 0 {
		t.Fatalf("expected no expiry before the delay, got %v", got)
	}

	clock.Advance(time.Millisecond)
	got := recorder.fired()
	if len(got) != 1 || got[0] != last {
		t.Fatalf("expected one expiry for generation %d, got %v", last, got)
	}

	silence, ok := detector.Expire(last)
	if !ok || silence != 70*time.Millisecond {
		t.Fatalf("expected current expiry after 70ms, got %s %v", silence, ok)
	}
	if detector.IsArmed() {
		t.Fatalf("expected detector to be disarmed after expiry")
	}
}

func TestEndpointDetectorRejectsStaleExpiry(t *testing.T) {
	clock := newFakeClock()
	detector := newEndpointDetector(clock, 70*time.Millisecond, func(uint64) {})

	stale := detector.Arm()
	current := detector.Arm()

	if _, ok := detector.Expire(stale); ok {
		t.Fatalf("expected expiry of a replaced countdown to be stale")
	}
	if _, ok := detector.Expire(current); !ok {
		t.Fatalf("expected expiry of the current countdown to be accepted")
	}
	if _, ok := detector.Expire(current); ok {
		t.Fatalf("expected expiry to be consumed once")
	}
}

func TestEndpointDetectorCancelStopsCountdown(t *testing.T) {
	clock := newFakeClock()
	recorder := &expiryRecorder{}
	detector := newEndpointDetector(clock, 70*time.Millisecond, recorder.record)

	generation := detector.Arm()
	detector.Cancel()
	clock.Advance(time.Second)

	if got := recorder.fired(); len(got) != 0 {
		t.Fatalf("expected cancelled countdown not to fire, got %v", got)
	}
	if _, ok := detector.Expire(generation); ok {
		t.Fatalf("expected cancelled generation to be stale")
	}
}

func TestEndpointDetectorRearmOnlyRestartsRunningCountdown(t *testing.T) {
	clock := newFakeClock()
	recorder := &expiryRecorder{}
	detector := newEndpointDetector(clock, 70*time.Millisecond, recorder.record)

	if detector.Rearm() {
		t.Fatalf("expected rearm without a running countdown to do nothing")
	}
	if got := clock.armedCount(); got != 0 {
		t.Fatalf("expected no timer, got %d", got)
	}

	detector.Arm()
	clock.Advance(50 * time.Millisecond)
	if !detector.Rearm() {
		t.Fatalf("expected rearm to restart the running countdown")
	}
	clock.Advance(50 * time.Millisecond)
	if got := recorder.fired(); len(got) != 0 {
		t.Fatalf("expected restarted countdown to still run, got %v", got)
	}
	clock.Advance(20 * time.Millisecond)
	if got := recorder.fired(); len(got) != 1 {
		t.Fatalf("expected one expiry, got %v", got)
	}
}

func TestEndpointDetectorCloseIsFinal(t *testing.T) {
	clock := newFakeClock()
	recorder := &expiryRecorder{}
	detector := newEndpointDetector(clock, 70*time.Millisecond, recorder.record)

	detector.Arm()
	detector.Close()
	detector.Arm()
	clock.Advance(time.Second)

	if got := recorder.fired(); len(got) != 0 {
		t.Fatalf("expected closed detector not to fire, got %v", got)
	}
	if detector.IsArmed() {
		t.Fatalf("expected closed detector to stay disarmed")
	}
}
