package orchestration

import (
	"context"

	"github.com/koscakluka/ema-tota/core/audio"
	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/llms"
	"github.com/koscakluka/ema-tota/core/persona"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"github.com/koscakluka/ema-tota/core/texttospeech"
	"github.com/koscakluka/ema-tota/core/turns"
)

type OrchestratorOption func(*Orchestrator)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.set(client) }
}

// WithStreamingLLM sets the generator of agent replies. Without one every
// agent turn ends with an empty reply.
func WithStreamingLLM(client llms.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.llm.set(client) }
}

type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech.set(client) }
}

type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput.Set(client) }
}

type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput.Set(client) }
}

// WithPersona sets the persona of the session. It is validated when the
// session starts.
func WithPersona(config persona.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.persona = config }
}

// WithGreeting makes the agent open the session with a greeting turn.
func WithGreeting() OrchestratorOption {
	return func(o *Orchestrator) { o.greeting = true }
}

// InterruptedResponsePolicy decides what happens to the text of an agent
// reply the user interrupted.
type InterruptedResponsePolicy string

const (
	// InterruptedResponseDiscard drops the reply; the conversation only keeps
	// completed agent replies.
	InterruptedResponseDiscard InterruptedResponsePolicy = "discard"
	// InterruptedResponseKeepTruncated appends the text generated so far as a
	// conversation item marked Truncated.
	InterruptedResponseKeepTruncated InterruptedResponsePolicy = "keep_truncated"
)

func WithInterruptedResponsePolicy(policy InterruptedResponsePolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		if policy == InterruptedResponseKeepTruncated {
			o.interruptedResponsePolicy = policy
			return
		}
		o.interruptedResponsePolicy = InterruptedResponseDiscard
	}
}

// WithObserver subscribes observers to session events, in the given order.
func WithObserver(observers ...Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		for _, observer := range observers {
			_ = o.bus.Subscribe(observer)
		}
	}
}

func withClock(clock clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = clock }
}

type OrchestrateOptions struct {
	onTranscription        func(transcript string)
	onInterimTranscription func(transcript string)
	onStateChanged         func(from, to turns.State)
	onConversationItem     func(item conversations.Item)
	onResponse             func(response string)
	onResponseEnd          func()
	onCancellation         func()
	onInputAudio           func(audio []byte)
	onAudio                func(audio []byte)
	onAudioEnded           func()
}

type OrchestrateOption func(*OrchestrateOptions)

// WithTranscriptionCallback registers a callback for final user transcripts.
//
// Transcripts passed in through [Orchestrator.HandleTranscript] trigger this
// callback as well.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

// WithInterimTranscriptionCallback registers a callback for non-final user
// transcripts.
func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscription = callback
	}
}

func WithStateChangedCallback(callback func(from, to turns.State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChanged = callback
	}
}

func WithConversationItemCallback(callback func(item conversations.Item)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onConversationItem = callback
	}
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponse = callback
	}
}

func WithResponseEndCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponseEnd = callback
	}
}

// WithCancellationCallback registers a callback run when the user interrupts
// the agent.
func WithCancellationCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onCancellation = callback
	}
}

func WithAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudio = callback
	}
}

func WithAudioEndedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioEnded = callback
	}
}

// WithInputAudioCallback registers a callback for raw input audio chunks.
//
// The slice is passed through without copying and must not be retained. The
// callback runs inline on the input-audio path and should not block.
func WithInputAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInputAudio = callback
	}
}
