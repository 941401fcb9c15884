package orchestration

import (
	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/events"
)

// input is anything the machine loop reacts to. Inputs from the response and
// speech stages carry the id of the turn that started them; the loop drops
// those whose turn is no longer open.
type input interface {
	isInput()
}

type utteranceInput struct {
	utterance events.Utterance
}

type transcriptFaultInput struct {
	err error
}

type recognizerLostInput struct {
	err error
}

type endpointInput struct {
	generation uint64
}

type fragmentInput struct {
	turnID uuid.UUID
	text   string
}

type generationEndedInput struct {
	turnID uuid.UUID
	err    error
}

type speechFrameInput struct {
	turnID uuid.UUID
	audio  []byte
}

type synthesisEndedInput struct {
	turnID uuid.UUID
	err    error
}

func (utteranceInput) isInput()       {}
func (transcriptFaultInput) isInput() {}
func (recognizerLostInput) isInput()  {}
func (endpointInput) isInput()        {}
func (fragmentInput) isInput()        {}
func (generationEndedInput) isInput() {}
func (speechFrameInput) isInput()     {}
func (synthesisEndedInput) isInput()  {}
