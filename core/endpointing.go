package orchestration

import (
	"sync"
	"time"
)

// endpointDetector is a debounce over final user transcripts. Every Arm
// restarts the countdown and bumps the generation; an expiry is only honoured
// when its generation is still the current one, so a timer that fired while
// being stopped can not end a turn it was not armed for.
type endpointDetector struct {
	mu         sync.Mutex
	clock      clock
	delay      time.Duration
	generation uint64
	armed      bool
	armedAt    time.Time
	timer      timer
	closed     bool

	onExpire func(generation uint64)
}

func newEndpointDetector(clock clock, delay time.Duration, onExpire func(generation uint64)) *endpointDetector {
	return &endpointDetector{clock: clock, delay: delay, onExpire: onExpire}
}

// Arm starts the countdown from now, replacing any running one.
func (d *endpointDetector) Arm() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.generation
	}

	d.stopLocked()
	d.generation++
	d.armed = true
	d.armedAt = d.clock.Now()
	generation := d.generation
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.armed && d.generation == generation
		d.mu.Unlock()
		if current {
			d.onExpire(generation)
		}
	})
	return generation
}

// Rearm restarts a running countdown and does nothing when none is running.
func (d *endpointDetector) Rearm() bool {
	d.mu.Lock()
	armed := d.armed && !d.closed
	d.mu.Unlock()
	if !armed {
		return false
	}
	d.Arm()
	return true
}

// Cancel stops the countdown. A pending expiry becomes stale.
func (d *endpointDetector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
}

// Expire consumes the expiry of generation and reports whether it is still
// current. On success it also returns how long the countdown ran.
func (d *endpointDetector) Expire(generation uint64) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.armed || d.generation != generation {
		return 0, false
	}
	d.armed = false
	d.timer = nil
	return d.clock.Now().Sub(d.armedAt), true
}

func (d *endpointDetector) IsArmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Close cancels the countdown for good.
func (d *endpointDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
	d.closed = true
}

func (d *endpointDetector) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
}
