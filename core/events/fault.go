package events

import "github.com/google/uuid"

// KindStageFault identifies a failed streaming stage.
const KindStageFault Kind = "stage.fault"

type Stage string

const (
	StageRecognizer  Stage = "recognizer"
	StageGenerator   Stage = "generator"
	StageSynthesizer Stage = "synthesizer"
	StageAudioOutput Stage = "audio_output"
)

// StageFault carries the error of a failed stage and the turn it affected.
// TurnID is the zero UUID when no turn was open.
type StageFault struct {
	Base
	Stage  Stage
	TurnID uuid.UUID
	Err    error
}

// NewStageFault creates a stage fault event.
func NewStageFault(stage Stage, turnID uuid.UUID, err error) StageFault {
	return StageFault{Base: NewBase(KindStageFault), Stage: stage, TurnID: turnID, Err: err}
}
