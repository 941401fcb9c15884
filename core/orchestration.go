package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/persona"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"github.com/koscakluka/ema-tota/core/turns"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// recognizerReopenDelays are the waits before each attempt to reopen the
// recognition stream after a fault.
var recognizerReopenDelays = []time.Duration{0, 250 * time.Millisecond, time.Second}

var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrClosed         = errors.New("orchestrator closed")

	ErrRecognizerUnavailable = errors.New("speech recognition could not be reopened")
)

// Orchestrator runs one spoken dialogue session: it listens to the user,
// decides when they finished speaking, streams the agent's reply through
// speech synthesis and yields the floor back when the user interrupts.
type Orchestrator struct {
	persona                   persona.Config
	greeting                  bool
	interruptedResponsePolicy InterruptedResponsePolicy
	clock                     clock

	bus          eventBus
	conversation *conversations.Log

	speechToText speechToText
	llm          llm
	textToSpeech textToSpeech
	audioInput   audioInput
	audioOutput  audioOutput

	transcriptMu sync.Mutex
	transcripts  *transcriptAdapter

	machine   atomic.Pointer[machine]
	started   atomic.Bool
	reopening atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	mu          sync.Mutex
	stopHook    chan struct{}
	baseContext context.Context
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		persona:                   persona.Default(),
		interruptedResponsePolicy: InterruptedResponseDiscard,
		clock:                     systemClock{},
		conversation:              conversations.NewLog(),
		baseContext:               context.Background(),
	}

	for _, opt := range opts {
		opt(o)
	}
	o.transcripts = newTranscriptAdapter(o.clock)

	return o
}

// Subscribe adds an observer of session events. Observers must be added
// before [Orchestrator.Orchestrate]; later calls fail with [ErrBusSealed].
func (o *Orchestrator) Subscribe(observer Observer) error {
	return o.bus.Subscribe(observer)
}

// Orchestrate validates the configuration, opens the recognition stream and
// starts the session. It returns once the session runs; the session ends
// when ctx is done or [Orchestrator.Close] is called.
//
// Configuration faults, an invalid persona or a recognizer that can not
// transcribe verbatim, are returned before any turn exists.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	startCtx, span := tracer.Start(ctx, "start session", trace.WithAttributes(
		attribute.String("persona.language", o.persona.TargetLanguage),
		attribute.String("persona.scenario", o.persona.Scenario),
		attribute.String("persona.voice", o.persona.VoiceID),
	))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.closed.Store(true)
		return err
	}

	if err := o.persona.Validate(); err != nil {
		return fail(fmt.Errorf("invalid persona: %w", err))
	}

	orchestrateOptions := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&orchestrateOptions)
	}
	o.bus.subscribe(newCallbackObserver(orchestrateOptions))
	o.bus.seal()

	o.mu.Lock()
	o.baseContext = ctx
	o.mu.Unlock()
	m := newMachine(ctx, o)
	o.machine.Store(m)

	// The learner mixes English into the target language, so the recognizer
	// detects the spoken language itself.
	if err := o.speechToText.Start(startCtx,
		speechtotext.WithEncodingInfo(o.audioInput.EncodingInfo()),
		speechtotext.WithTranscriptCallback(o.HandleTranscript),
		speechtotext.WithFaultCallback(o.HandleTranscriptFault),
	); err != nil {
		o.machine.Store(nil)
		close(m.done)
		return fail(fmt.Errorf("failed to start speech recognition: %w", err))
	}

	go m.run()
	o.mu.Lock()
	o.stopHook = withContextCancelHook(ctx, o.Close)
	o.mu.Unlock()

	o.audioInput.Start(ctx, func(audio []byte) {
		if orchestrateOptions.onInputAudio != nil {
			orchestrateOptions.onInputAudio(audio)
		}
		if err := o.speechToText.SendAudio(audio); err != nil {
			logger.Warn("failed to send audio to speech-to-text", "error", err)
		}
	})

	return nil
}

// Close ends the session: the open turn is abandoned, both streaming stages
// are cancelled and the clients are closed. It blocks until the session loop
// has exited and is safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		if m := o.machine.Load(); m != nil {
			close(m.stop)
			<-m.done
		}
		o.mu.Lock()
		if o.stopHook != nil {
			close(o.stopHook)
			o.stopHook = nil
		}
		baseContext := o.baseContext
		o.mu.Unlock()

		o.audioInput.Close()
		if err := o.speechToText.Close(baseContext); err != nil {
			recordedErr := fmt.Errorf("failed to close speech-to-text client: %w", err)
			span := trace.SpanFromContext(baseContext)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}
	})
}

// HandleTranscript feeds a recognizer update into the session. The
// configured speech-to-text client calls it; callers with their own
// recognizer may call it directly.
func (o *Orchestrator) HandleTranscript(transcript speechtotext.Transcript) {
	m := o.machine.Load()
	if m == nil || o.closed.Load() {
		return
	}

	o.transcriptMu.Lock()
	defer o.transcriptMu.Unlock()
	utterance, ok := o.transcripts.Normalize(transcript)
	if !ok {
		return
	}
	m.post(m.userInputs, utteranceInput{utterance: utterance})
}

// HandleTranscriptFault reports that the recognition stream broke. The
// stream is reopened in the background; only when every attempt fails does
// the session report the recognizer as unavailable.
func (o *Orchestrator) HandleTranscriptFault(err error) {
	m := o.machine.Load()
	if m == nil || o.closed.Load() {
		return
	}
	m.post(m.userInputs, transcriptFaultInput{err: err})

	if o.reopening.CompareAndSwap(false, true) {
		go o.reopenSpeechToText(m)
	}
}

func (o *Orchestrator) reopenSpeechToText(m *machine) {
	defer o.reopening.Store(false)

	o.mu.Lock()
	ctx := o.baseContext
	o.mu.Unlock()

	var err error
	for attempt, delay := range recognizerReopenDelays {
		if delay > 0 && !o.sleep(ctx, m, delay) {
			return
		}
		if o.closed.Load() {
			return
		}
		err = o.speechToText.Reopen(ctx)
		if err == nil {
			logger.Info("reopened speech recognition", "attempt", attempt+1)
			return
		}
		if errors.Is(err, errSpeechToTextClosed) {
			return
		}
		logger.Warn("failed to reopen speech recognition", "attempt", attempt+1, "error", err)
	}
	m.post(m.userInputs, recognizerLostInput{err: err})
}

// sleep waits d on the session clock. It reports false when the session
// ended first.
func (o *Orchestrator) sleep(ctx context.Context, m *machine, d time.Duration) bool {
	elapsed := make(chan struct{})
	t := o.clock.AfterFunc(d, func() { close(elapsed) })
	select {
	case <-elapsed:
		return true
	case <-ctx.Done():
	case <-m.stop:
	}
	t.Stop()
	return false
}

func (o *Orchestrator) SendAudio(audio []byte) error { return o.speechToText.SendAudio(audio) }

// State returns the current session state.
func (o *Orchestrator) State() turns.State {
	if m := o.machine.Load(); m != nil {
		return m.State()
	}
	return turns.StateIdle
}

// Conversation returns a copy of the committed conversation.
func (o *Orchestrator) Conversation() []conversations.Item {
	return o.conversation.Snapshot()
}

func (o *Orchestrator) Persona() persona.Config { return o.persona }
