package deepgram

import (
	"context"
	"testing"

	"github.com/koscakluka/ema-tota/core/speechtotext"
)

func newTestClient(t *testing.T) *TranscriptionClient {
	t.Helper()
	client, err := NewTranscriptionClient("test-key")
	if err != nil {
		t.Fatalf("expected client, got error %v", err)
	}
	client.nextUtterance()
	return client
}

func TestInterimAndFinalShareUtteranceID(t *testing.T) {
	client := newTestClient(t)

	var received []speechtotext.Transcript
	options := speechtotext.NewOptions(speechtotext.WithTranscriptCallback(func(transcript speechtotext.Transcript) {
		received = append(received, transcript)
	}))

	client.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"nama"}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"namaskaram"}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"sukham"}]}}`), options)

	if len(received) != 3 {
		t.Fatalf("expected 3 transcripts, got %d", len(received))
	}
	if received[0].IsFinal || !received[1].IsFinal || received[2].IsFinal {
		t.Fatalf("unexpected finality sequence: %+v", received)
	}
	if received[0].UtteranceID != received[1].UtteranceID {
		t.Fatalf("expected interim and final to share utterance id, got %q and %q", received[0].UtteranceID, received[1].UtteranceID)
	}
	if received[2].UtteranceID == received[1].UtteranceID {
		t.Fatalf("expected a new utterance id after the final result")
	}
}

func TestEmptyResultsAreNotDelivered(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	options := speechtotext.NewOptions(speechtotext.WithTranscriptCallback(func(speechtotext.Transcript) { calls++ }))

	client.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`), options)
	client.processMessage([]byte(`not json`), options)

	if calls != 0 {
		t.Fatalf("expected no transcripts, got %d", calls)
	}
}

func TestSpeechEventsTriggerCallbacks(t *testing.T) {
	client := newTestClient(t)

	started, ended := 0, 0
	options := speechtotext.NewOptions(
		speechtotext.WithSpeechStartedCallback(func() { started++ }),
		speechtotext.WithSpeechEndedCallback(func() { ended++ }),
	)

	client.processMessage([]byte(`{"type":"SpeechStarted"}`), options)
	client.processMessage([]byte(`{"type":"UtteranceEnd"}`), options)

	if started != 1 || ended != 1 {
		t.Fatalf("expected one start and one end callback, got %d and %d", started, ended)
	}
}

func TestTranscribeRejectsTranslateMode(t *testing.T) {
	client := newTestClient(t)

	if err := client.Transcribe(context.Background(), speechtotext.WithMode(speechtotext.ModeTranslate)); err == nil {
		t.Fatalf("expected translate mode to be rejected")
	}
}
