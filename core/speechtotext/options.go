package speechtotext

import (
	"errors"

	"github.com/koscakluka/ema-tota/core/audio"
)

// ErrVerbatimModeUnsupported is returned by clients asked for verbatim
// transcription when their model can only translate.
var ErrVerbatimModeUnsupported = errors.New("verbatim transcription mode not supported")

// Mode selects what the recognizer returns for speech in the source language.
type Mode string

const (
	// ModeVerbatim returns the words in the language they were spoken.
	ModeVerbatim Mode = "verbatim"
	// ModeTranslate returns an English translation of the speech.
	ModeTranslate Mode = "translate"
)

// Transcript is a single recognizer result. Results that share an
// UtteranceID revise the same utterance; clients that cannot identify
// utterances leave it empty.
type Transcript struct {
	UtteranceID string
	Text        string
	IsFinal     bool
}

type TranscriptionOptions struct {
	Mode     Mode
	Language string

	TranscriptCallback func(Transcript)
	// FaultCallback is called once when the transcript stream fails. No
	// further transcripts are delivered after it.
	FaultCallback func(error)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithMode(mode Mode) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Mode = mode
	}
}

// WithLanguage sets the BCP-47 language hint. An empty language lets the
// recognizer detect it.
func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithTranscriptCallback(callback func(Transcript)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptCallback = callback
	}
}

func WithFaultCallback(callback func(error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.FaultCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// NewOptions applies opts over verbatim mode, the default encoding and
// no-op callbacks.
func NewOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{
		Mode:         ModeVerbatim,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.TranscriptCallback == nil {
		options.TranscriptCallback = func(Transcript) {}
	}
	if options.FaultCallback == nil {
		options.FaultCallback = func(error) {}
	}
	if options.SpeechStartedCallback == nil {
		options.SpeechStartedCallback = func() {}
	}
	if options.SpeechEndedCallback == nil {
		options.SpeechEndedCallback = func() {}
	}
	return options
}
