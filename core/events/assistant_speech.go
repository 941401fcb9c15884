package events

import "github.com/google/uuid"

const (
	// KindAssistantSpeechFrame identifies synthesized assistant speech audio.
	KindAssistantSpeechFrame Kind = "assistant_speech.frame"
	// KindAssistantSpeechFinal identifies speech synthesis completion.
	KindAssistantSpeechFinal Kind = "assistant_speech.final"
	// KindAssistantSpeechCleared identifies discarded outbound speech.
	KindAssistantSpeechCleared Kind = "assistant_speech.cleared"
)

// AssistantSpeechFrame carries a synthesized assistant speech audio frame.
type AssistantSpeechFrame struct {
	Base
	TurnID uuid.UUID
	Audio  []byte
}

// NewAssistantSpeechFrame creates an assistant speech audio frame event.
func NewAssistantSpeechFrame(turnID uuid.UUID, audio []byte) AssistantSpeechFrame {
	return AssistantSpeechFrame{Base: NewBase(KindAssistantSpeechFrame), TurnID: turnID, Audio: audio}
}

// AssistantSpeechFinal marks completion of speech synthesis.
type AssistantSpeechFinal struct {
	Base
	TurnID uuid.UUID
}

// NewAssistantSpeechFinal creates an assistant speech final event.
func NewAssistantSpeechFinal(turnID uuid.UUID) AssistantSpeechFinal {
	return AssistantSpeechFinal{Base: NewBase(KindAssistantSpeechFinal), TurnID: turnID}
}

// AssistantSpeechCleared marks that queued outbound speech of a turn was
// dropped because the user took the floor.
type AssistantSpeechCleared struct {
	Base
	TurnID uuid.UUID
}

// NewAssistantSpeechCleared creates an assistant speech cleared event.
func NewAssistantSpeechCleared(turnID uuid.UUID) AssistantSpeechCleared {
	return AssistantSpeechCleared{Base: NewBase(KindAssistantSpeechCleared), TurnID: turnID}
}
