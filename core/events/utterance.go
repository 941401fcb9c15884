package events

import "time"

const (
	// KindUtterancePartial identifies a revisable, non-final transcript.
	KindUtterancePartial Kind = "utterance.partial"
	// KindUtteranceFinal identifies the final transcript of an utterance.
	KindUtteranceFinal Kind = "utterance.final"
	// KindTranscriptFault identifies a failure of the transcript stream.
	KindTranscriptFault Kind = "utterance.transcript_fault"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Utterance is a normalized transcript update. Updates of one utterance share
// the UtteranceID; once an update with IsFinal is emitted no further update
// of that utterance follows.
type Utterance struct {
	Base
	Speaker     Speaker
	UtteranceID string
	Text        string
	IsFinal     bool
}

// NewUtterance creates an utterance event stamped with timestamp.
func NewUtterance(speaker Speaker, utteranceID, text string, isFinal bool, timestamp time.Time) Utterance {
	kind := KindUtterancePartial
	if isFinal {
		kind = KindUtteranceFinal
	}
	return Utterance{
		Base:        NewBaseAt(kind, timestamp),
		Speaker:     speaker,
		UtteranceID: utteranceID,
		Text:        text,
		IsFinal:     isFinal,
	}
}

// TranscriptFault carries the error that broke the transcript stream.
type TranscriptFault struct {
	Base
	Err error
}

// NewTranscriptFault creates a transcript fault event.
func NewTranscriptFault(err error) TranscriptFault {
	return TranscriptFault{Base: NewBase(KindTranscriptFault), Err: err}
}
