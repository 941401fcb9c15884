// Package turns holds the floor-ownership vocabulary shared by the
// orchestrator, its events and its observers.
package turns

import (
	"time"

	"github.com/google/uuid"
)

// State is the position of the session in the turn-taking cycle.
type State string

const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateThinking    State = "thinking"
	StateSpeaking    State = "speaking"
	StateInterrupted State = "interrupted"
)

// Owner is the party holding the floor for a turn.
type Owner string

const (
	OwnerUser  Owner = "user"
	OwnerAgent Owner = "agent"
)

// Outcome records why a turn was closed.
type Outcome string

const (
	OutcomeOpen Outcome = "open"
	// OutcomeCompleted is a turn that ran to its natural end.
	OutcomeCompleted Outcome = "completed"
	// OutcomeInterrupted is an agent turn cut short by the user.
	OutcomeInterrupted Outcome = "interrupted"
	// OutcomeIndeterminate is a turn closed because one of its streams failed.
	OutcomeIndeterminate Outcome = "indeterminate"
	// OutcomeAbandoned is a turn force-closed by the end of the session.
	OutcomeAbandoned Outcome = "abandoned"
)

// Turn is a contiguous period during which one party holds the floor.
type Turn struct {
	ID        uuid.UUID
	Owner     Owner
	State     State
	StartedAt time.Time
	EndedAt   *time.Time
	Outcome   Outcome
}

func New(owner Owner, state State, startedAt time.Time) *Turn {
	return &Turn{
		ID:        uuid.New(),
		Owner:     owner,
		State:     state,
		StartedAt: startedAt,
		Outcome:   OutcomeOpen,
	}
}

func (t *Turn) IsOpen() bool {
	return t != nil && t.EndedAt == nil
}

// Advance moves the turn to state. Only forward moves along
// listening/thinking/speaking are accepted, plus speaking or thinking to
// interrupted. Advance reports whether the move was applied.
func (t *Turn) Advance(state State) bool {
	if !t.IsOpen() {
		return false
	}

	if state == StateInterrupted {
		if t.State != StateThinking && t.State != StateSpeaking {
			return false
		}
		t.State = state
		return true
	}

	if rank(state) <= rank(t.State) {
		return false
	}
	t.State = state
	return true
}

// Close ends the turn with outcome. Closing an already closed turn is a
// no-op.
func (t *Turn) Close(outcome Outcome, at time.Time) bool {
	if !t.IsOpen() {
		return false
	}

	t.EndedAt = &at
	t.Outcome = outcome
	return true
}

func (t *Turn) Duration() time.Duration {
	if t == nil || t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

func rank(state State) int {
	switch state {
	case StateListening:
		return 1
	case StateThinking:
		return 2
	case StateSpeaking:
		return 3
	case StateInterrupted:
		return 4
	}
	return 0
}
