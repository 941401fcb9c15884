package speechtotext

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-tota/core/audio"
)

func TestNewOptionsDefaultsToVerbatimWithNoopCallbacks(t *testing.T) {
	options := NewOptions()

	if options.Mode != ModeVerbatim {
		t.Fatalf("expected verbatim mode by default, got %q", options.Mode)
	}
	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected default encoding, got %+v", options.EncodingInfo)
	}

	options.TranscriptCallback(Transcript{Text: "hello"})
	options.FaultCallback(errors.New("boom"))
	options.SpeechStartedCallback()
	options.SpeechEndedCallback()
}

func TestNewOptionsKeepsConfiguredValues(t *testing.T) {
	var received []Transcript
	options := NewOptions(
		WithMode(ModeTranslate),
		WithLanguage("ml-IN"),
		WithTranscriptCallback(func(transcript Transcript) { received = append(received, transcript) }),
	)

	if options.Mode != ModeTranslate {
		t.Fatalf("expected translate mode, got %q", options.Mode)
	}
	if options.Language != "ml-IN" {
		t.Fatalf("expected ml-IN language, got %q", options.Language)
	}

	options.TranscriptCallback(Transcript{UtteranceID: "u1", Text: "namaskaram", IsFinal: true})
	if len(received) != 1 || received[0].UtteranceID != "u1" {
		t.Fatalf("expected configured transcript callback to be used, got %+v", received)
	}
}
