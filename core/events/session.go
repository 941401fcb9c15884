package events

import "github.com/koscakluka/ema-tota/core/persona"

const (
	// KindSessionStarted identifies the start of a dialogue session.
	KindSessionStarted Kind = "session.started"
	// KindSessionEnded identifies the end of a dialogue session.
	KindSessionEnded Kind = "session.ended"
)

// SessionStarted carries the persona the session runs with.
type SessionStarted struct {
	Base
	Persona persona.Config
}

// NewSessionStarted creates a session started event.
func NewSessionStarted(config persona.Config) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted), Persona: config}
}

// SessionEnded marks the end of the session.
type SessionEnded struct{ Base }

// NewSessionEnded creates a session ended event.
func NewSessionEnded() SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded)}
}
