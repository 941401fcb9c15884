package turns

import (
	"testing"
	"time"
)

func TestAdvanceOnlyMovesForward(t *testing.T) {
	turn := New(OwnerAgent, StateThinking, time.Now())

	if !turn.Advance(StateSpeaking) {
		t.Fatalf("expected thinking -> speaking to be accepted")
	}
	if turn.Advance(StateThinking) {
		t.Fatalf("expected speaking -> thinking to be rejected")
	}
	if turn.State != StateSpeaking {
		t.Fatalf("expected state speaking, got %s", turn.State)
	}
}

func TestAdvanceToInterruptedRequiresAgentFloor(t *testing.T) {
	listening := New(OwnerUser, StateListening, time.Now())
	if listening.Advance(StateInterrupted) {
		t.Fatalf("expected listening -> interrupted to be rejected")
	}

	thinking := New(OwnerAgent, StateThinking, time.Now())
	if !thinking.Advance(StateInterrupted) {
		t.Fatalf("expected thinking -> interrupted to be accepted")
	}
	if thinking.Advance(StateSpeaking) {
		t.Fatalf("expected interrupted to be terminal")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	start := time.Now()
	turn := New(OwnerUser, StateListening, start)

	if !turn.Close(OutcomeCompleted, start.Add(time.Second)) {
		t.Fatalf("expected first close to be applied")
	}
	if turn.Close(OutcomeAbandoned, start.Add(2*time.Second)) {
		t.Fatalf("expected second close to be ignored")
	}
	if turn.Outcome != OutcomeCompleted {
		t.Fatalf("expected outcome completed, got %s", turn.Outcome)
	}
	if got := turn.Duration(); got != time.Second {
		t.Fatalf("expected duration 1s, got %s", got)
	}
	if turn.Advance(StateThinking) {
		t.Fatalf("expected closed turn to reject advances")
	}
}
