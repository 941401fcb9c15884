package events

import "github.com/google/uuid"

const (
	// KindAssistantResponseSegment identifies streamed assistant response text.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseFinal identifies assistant response stream completion.
	KindAssistantResponseFinal Kind = "assistant_response.final"
)

// AssistantResponseSegment carries a streamed assistant response text segment.
type AssistantResponseSegment struct {
	Base
	TurnID  uuid.UUID
	Segment string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(turnID uuid.UUID, segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), TurnID: turnID, Segment: segment}
}

// AssistantResponseFinal marks assistant response stream completion and
// carries the assembled response text.
type AssistantResponseFinal struct {
	Base
	TurnID uuid.UUID
	Text   string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(turnID uuid.UUID, text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), TurnID: turnID, Text: text}
}
