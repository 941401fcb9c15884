package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/turns"
)

const (
	// KindTurnStarted identifies the opening of a turn.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnStateChanged identifies a session state transition.
	KindTurnStateChanged Kind = "turn_state.changed"
	// KindTurnEnded identifies the closing of a turn with its outcome.
	KindTurnEnded Kind = "turn_state.ended"
	// KindEndpointReached identifies the end of a user utterance.
	KindEndpointReached Kind = "turn_state.endpoint_reached"
)

// TurnStarted carries the turn as it was opened.
type TurnStarted struct {
	Base
	Turn turns.Turn
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turn turns.Turn) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), Turn: turn}
}

// TurnStateChanged carries a session state transition. TurnID is the turn
// open after the transition, or the one just closed when To is idle.
type TurnStateChanged struct {
	Base
	TurnID uuid.UUID
	From   turns.State
	To     turns.State
}

// NewTurnStateChanged creates a turn state changed event.
func NewTurnStateChanged(turnID uuid.UUID, from, to turns.State) TurnStateChanged {
	return TurnStateChanged{Base: NewBase(KindTurnStateChanged), TurnID: turnID, From: from, To: to}
}

// TurnEnded carries the closed turn, including its outcome.
type TurnEnded struct {
	Base
	Turn turns.Turn
}

// NewTurnEnded creates a turn ended event.
func NewTurnEnded(turn turns.Turn) TurnEnded {
	return TurnEnded{Base: NewBase(KindTurnEnded), Turn: turn}
}

// EndpointReached marks that the user finished speaking. Silence is the time
// waited after the last final transcript.
type EndpointReached struct {
	Base
	TurnID  uuid.UUID
	Silence time.Duration
}

// NewEndpointReached creates an endpoint reached event.
func NewEndpointReached(turnID uuid.UUID, silence time.Duration) EndpointReached {
	return EndpointReached{Base: NewBase(KindEndpointReached), TurnID: turnID, Silence: silence}
}
