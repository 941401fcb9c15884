package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type textToSpeech struct {
	client TextToSpeech
}

func (t *textToSpeech) set(client TextToSpeech) {
	if t == nil {
		return
	}
	t.client = nil
	if !isNilClient(client) {
		t.client = client
	}
}

func (t *textToSpeech) isConfigured() bool {
	return t != nil && t.client != nil
}

// speechSynthesis speaks one agent reply. Fragments are queued with AddText
// and streamed to the provider by a worker; audio, completion and failure
// reach the machine loop through the fence.
type speechSynthesis struct {
	turnID uuid.UUID
	fence  *fence
	text   *fragmentBuffer

	mu        sync.Mutex
	generator texttospeech.SpeechGenerator
	cancelled bool
	cancelCtx context.CancelFunc
}

// startSpeech opens the provider stream in the background and returns at
// once. Without a client the reply is treated as spoken as soon as its text
// is complete.
func (t *textToSpeech) startSpeech(ctx context.Context, turnID uuid.UUID, fence *fence, opts ...texttospeech.TextToSpeechOption) *speechSynthesis {
	ctx, cancel := context.WithCancel(ctx)
	synthesis := &speechSynthesis{
		turnID:    turnID,
		fence:     fence,
		text:      newFragmentBuffer(),
		cancelCtx: cancel,
	}

	var client TextToSpeech
	if t.isConfigured() {
		client = t.client
	}
	go func() {
		err := panicSafeNamedWorker("speech synthesis", func(ctx context.Context) error {
			return synthesis.run(ctx, client, opts)
		})(ctx)
		if err != nil && !fence.isCancelled() {
			fence.emit(synthesisEndedInput{turnID: turnID, err: err})
		}
	}()
	return synthesis
}

func (s *speechSynthesis) run(ctx context.Context, client TextToSpeech, opts []texttospeech.TextToSpeechOption) error {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", s.turnID.String()))

	if client == nil {
		for range s.text.Fragments {
		}
		if !s.fence.isCancelled() {
			s.fence.emit(synthesisEndedInput{turnID: s.turnID})
		}
		return nil
	}

	opts = append(opts,
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			s.fence.emit(speechFrameInput{turnID: s.turnID, audio: audio})
		}),
		texttospeech.WithSpeechEndedCallback(func() {
			s.fence.emit(synthesisEndedInput{turnID: s.turnID})
		}),
		texttospeech.WithErrorCallback(func(err error) {
			s.fence.emit(synthesisEndedInput{turnID: s.turnID, err: err})
		}),
	)

	generator, err := client.NewSpeechGenerator(ctx, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		err = fmt.Errorf("failed to open speech generator: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		if err := generator.Cancel(); err != nil {
			logger.Warn("failed to cancel speech generator", "error", err)
		}
		return nil
	}
	s.generator = generator
	s.mu.Unlock()

	for text := range s.text.Fragments {
		if err := generator.SendText(text); err != nil {
			if s.fence.isCancelled() || errors.Is(err, texttospeech.ErrGeneratorCancelled) {
				return nil
			}
			span.RecordError(err)
			return fmt.Errorf("failed to send text to speech generator: %w", err)
		}
	}
	if s.fence.isCancelled() {
		return nil
	}

	if err := generator.EndOfText(); err != nil {
		if s.fence.isCancelled() {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to end speech text: %w", err)
	}
	return nil
}

func (s *speechSynthesis) AddText(text string) { s.text.Add(text) }

// Finish marks the reply text as complete.
func (s *speechSynthesis) Finish() { s.text.Complete() }

// Cancel stops synthesis and closes the provider stream. No input of this
// synthesis reaches the loop after Cancel returns. Cancelling a finished
// synthesis only releases its stream.
func (s *speechSynthesis) Cancel() {
	if s == nil {
		return
	}

	s.fence.cancel()
	s.text.Clear()

	s.mu.Lock()
	alreadyCancelled := s.cancelled
	s.cancelled = true
	generator := s.generator
	s.mu.Unlock()
	if alreadyCancelled {
		return
	}

	s.cancelCtx()
	if generator != nil {
		if err := generator.Cancel(); err != nil {
			logger.Warn("failed to cancel speech generator", "error", err)
		}
	}
}
