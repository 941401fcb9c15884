package orchestration

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/events"
	"github.com/koscakluka/ema-tota/core/speechtotext"
)

const finalizedUtteranceMemory = 256

// transcriptAdapter turns raw recognizer output into user utterance events.
// Updates are keyed by utterance id: once an utterance is final any later
// update for it is dropped, so finality only moves forward. Timestamps never
// go backwards even when the clock does.
type transcriptAdapter struct {
	mu    sync.Mutex
	clock clock

	lastTimestamp time.Time
	// derivedID names the open utterance of a recognizer that sends no ids.
	derivedID string
	finalized map[string]struct{}
	// finalizedOrder bounds finalized to the most recent ids.
	finalizedOrder []string
}

func newTranscriptAdapter(clock clock) *transcriptAdapter {
	return &transcriptAdapter{clock: clock, finalized: map[string]struct{}{}}
}

// Normalize returns the utterance event for transcript, or false when the
// update must be dropped.
func (a *transcriptAdapter) Normalize(transcript speechtotext.Transcript) (events.Utterance, bool) {
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return events.Utterance{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := transcript.UtteranceID
	if id == "" {
		if a.derivedID == "" {
			a.derivedID = uuid.NewString()
		}
		id = a.derivedID
	}
	if _, done := a.finalized[id]; done {
		return events.Utterance{}, false
	}

	if transcript.IsFinal {
		a.markFinalizedLocked(id)
		if id == a.derivedID {
			a.derivedID = ""
		}
	}

	timestamp := a.clock.Now()
	if timestamp.Before(a.lastTimestamp) {
		timestamp = a.lastTimestamp
	}
	a.lastTimestamp = timestamp

	return events.NewUtterance(events.SpeakerUser, id, text, transcript.IsFinal, timestamp), true
}

func (a *transcriptAdapter) markFinalizedLocked(id string) {
	a.finalized[id] = struct{}{}
	a.finalizedOrder = append(a.finalizedOrder, id)
	if len(a.finalizedOrder) > finalizedUtteranceMemory {
		delete(a.finalized, a.finalizedOrder[0])
		a.finalizedOrder = a.finalizedOrder[1:]
	}
}
