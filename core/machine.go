package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/events"
	"github.com/koscakluka/ema-tota/core/llms"
	"github.com/koscakluka/ema-tota/core/persona"
	"github.com/koscakluka/ema-tota/core/texttospeech"
	"github.com/koscakluka/ema-tota/core/turns"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const inputBufferSize = 64

// machine is the turn state machine of one session. Everything below the
// channels is owned by the run goroutine; adapters only ever post inputs.
type machine struct {
	ctx     context.Context
	clock   clock
	persona persona.Config
	policy  InterruptedResponsePolicy
	greet   bool

	bus          *eventBus
	conversation *conversations.Log
	detector     *endpointDetector
	llm          *llm
	textToSpeech *textToSpeech
	audioOutput  *audioOutput

	userInputs     chan input
	pipelineInputs chan input
	stop           chan struct{}
	done           chan struct{}

	// state mirrors sessionState for readers outside the loop.
	state atomic.Value

	sessionState turns.State
	turn         *turns.Turn
	userText     []string
	response     *agentResponse
}

// agentResponse is the streaming side of the open agent turn.
type agentResponse struct {
	generation *responseGeneration
	synthesis  *speechSynthesis
	span       trace.Span

	text           strings.Builder
	fragments      int
	generationDone bool
	synthesisDone  bool
}

func newMachine(ctx context.Context, o *Orchestrator) *machine {
	m := &machine{
		ctx:            ctx,
		clock:          o.clock,
		persona:        o.persona,
		policy:         o.interruptedResponsePolicy,
		greet:          o.greeting,
		bus:            &o.bus,
		conversation:   o.conversation,
		llm:            &o.llm,
		textToSpeech:   &o.textToSpeech,
		audioOutput:    &o.audioOutput,
		userInputs:     make(chan input, inputBufferSize),
		pipelineInputs: make(chan input, inputBufferSize),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		sessionState:   turns.StateIdle,
	}
	m.state.Store(turns.StateIdle)
	m.detector = newEndpointDetector(m.clock, m.persona.EndpointingDelay, func(generation uint64) {
		m.post(m.pipelineInputs, endpointInput{generation: generation})
	})
	return m
}

// post hands in to the loop unless the loop is gone.
func (m *machine) post(inputs chan input, in input) {
	select {
	case inputs <- in:
	case <-m.done:
	}
}

func (m *machine) State() turns.State {
	return m.state.Load().(turns.State)
}

// run processes inputs one at a time until stop is closed. User input is
// always taken first, so a user utterance wins every race against the
// completion of an agent turn.
func (m *machine) run() {
	defer close(m.done)

	m.bus.Publish(events.NewSessionStarted(m.persona))
	if m.greet {
		m.startAgentTurn(m.persona.GreetingInstructions())
	}

	for {
		select {
		case in := <-m.userInputs:
			m.handle(in)
			continue
		default:
		}

		select {
		case in := <-m.userInputs:
			m.handle(in)
		case in := <-m.pipelineInputs:
			m.handle(in)
		case <-m.stop:
			m.shutdown()
			return
		}
	}
}

func (m *machine) handle(in input) {
	switch in := in.(type) {
	case utteranceInput:
		m.onUtterance(in.utterance)
	case transcriptFaultInput:
		m.onTranscriptFault(in.err)
	case recognizerLostInput:
		m.onRecognizerLost(in.err)
	case endpointInput:
		m.onEndpoint(in.generation)
	case fragmentInput:
		if m.isCurrentAgentTurn(in.turnID) {
			m.onFragment(in.text)
		}
	case generationEndedInput:
		if m.isCurrentAgentTurn(in.turnID) {
			m.onGenerationEnded(in.err)
		}
	case speechFrameInput:
		if m.isCurrentAgentTurn(in.turnID) {
			m.onSpeechFrame(in.audio)
		}
	case synthesisEndedInput:
		if m.isCurrentAgentTurn(in.turnID) {
			m.onSynthesisEnded(in.err)
		}
	}
}

func (m *machine) isCurrentAgentTurn(turnID uuid.UUID) bool {
	return m.response != nil && m.turn.IsOpen() && m.turn.Owner == turns.OwnerAgent && m.turn.ID == turnID
}

func (m *machine) onUtterance(utterance events.Utterance) {
	m.bus.Publish(utterance)

	switch m.sessionState {
	case turns.StateThinking, turns.StateSpeaking:
		m.interrupt()
		m.openUserTurn()
	case turns.StateIdle:
		m.openUserTurn()
	}

	if utterance.IsFinal {
		m.userText = append(m.userText, utterance.Text)
		m.detector.Arm()
	} else {
		m.detector.Rearm()
	}
}

func (m *machine) onEndpoint(generation uint64) {
	silence, ok := m.detector.Expire(generation)
	if !ok || m.sessionState != turns.StateListening || !m.turn.IsOpen() {
		return
	}

	userTurn := m.turn
	m.bus.Publish(events.NewEndpointReached(userTurn.ID, silence))
	endpointDelayHistogram.Record(m.ctx, silence.Seconds())

	text := strings.Join(m.userText, " ")
	m.userText = nil
	m.closeTurn(turns.OutcomeCompleted)
	m.appendItem(conversations.Item{Role: conversations.RoleUser, Text: text, TurnID: userTurn.ID})

	m.startAgentTurn("")
}

func (m *machine) onTranscriptFault(err error) {
	m.bus.Publish(events.NewTranscriptFault(err))

	switch m.sessionState {
	case turns.StateThinking, turns.StateSpeaking:
		m.failAgentTurn(events.StageRecognizer, err)
	case turns.StateListening:
		userTurn := m.turn
		m.recordFault(events.StageRecognizer, userTurn.ID, err)
		m.detector.Cancel()
		m.userText = nil
		m.closeTurn(turns.OutcomeIndeterminate)
		m.setState(turns.StateIdle, userTurn.ID)
	default:
		m.recordFault(events.StageRecognizer, uuid.Nil, err)
	}
}

// onRecognizerLost reports that the recognition stream could not be reopened
// after a fault. The session keeps running but hears nothing more.
func (m *machine) onRecognizerLost(err error) {
	var turnID uuid.UUID
	if m.turn.IsOpen() {
		turnID = m.turn.ID
	}
	logger.Error("speech recognition unavailable", "error", err)
	m.recordFault(events.StageRecognizer, turnID, fmt.Errorf("%w: %w", ErrRecognizerUnavailable, err))
}

func (m *machine) openUserTurn() {
	turn := turns.New(turns.OwnerUser, turns.StateListening, m.clock.Now())
	m.turn = turn
	m.userText = nil
	m.bus.Publish(events.NewTurnStarted(*turn))
	m.setState(turns.StateListening, turn.ID)
}

func (m *machine) startAgentTurn(directive string) {
	turn := turns.New(turns.OwnerAgent, turns.StateThinking, m.clock.Now())
	m.turn = turn
	m.bus.Publish(events.NewTurnStarted(*turn))
	m.setState(turns.StateThinking, turn.ID)

	ctx, span := tracer.Start(m.ctx, "process turn", trace.WithAttributes(
		attribute.String("turn.id", turn.ID.String()),
		attribute.Bool("turn.greeting", directive != ""),
	))

	response := &agentResponse{span: span}
	response.synthesis = m.textToSpeech.startSpeech(ctx, turn.ID,
		newFence(m.pipelineInputs, m.done),
		texttospeech.WithLanguage(m.persona.TargetLanguage),
		texttospeech.WithVoice(m.persona.VoiceID),
		texttospeech.WithEncodingInfo(m.audioOutput.EncodingInfo()),
	)
	response.generation = m.llm.startResponse(ctx, llms.Request{
		Instructions: m.persona.Instructions(),
		History:      m.conversation.Snapshot(),
		Directive:    directive,
	}, turn.ID, newFence(m.pipelineInputs, m.done))
	m.response = response
}

func (m *machine) onFragment(text string) {
	response := m.response
	if response.fragments == 0 && m.turn.Advance(turns.StateSpeaking) {
		m.setState(turns.StateSpeaking, m.turn.ID)
	}
	response.fragments++
	response.text.WriteString(text)

	m.bus.Publish(events.NewAssistantResponseSegment(m.turn.ID, text))
	response.synthesis.AddText(text)
}

func (m *machine) onGenerationEnded(err error) {
	if err != nil {
		m.failAgentTurn(events.StageGenerator, err)
		return
	}

	response := m.response
	response.generationDone = true
	m.bus.Publish(events.NewAssistantResponseFinal(m.turn.ID, response.text.String()))

	if response.fragments == 0 {
		response.synthesis.Cancel()
		m.completeAgentTurn()
		return
	}
	response.synthesis.Finish()
	if response.synthesisDone {
		m.completeAgentTurn()
	}
}

func (m *machine) onSpeechFrame(audio []byte) {
	if err := m.audioOutput.SendAudio(audio); err != nil {
		m.failAgentTurn(events.StageAudioOutput, err)
		return
	}
	m.bus.Publish(events.NewAssistantSpeechFrame(m.turn.ID, audio))
}

func (m *machine) onSynthesisEnded(err error) {
	if err != nil {
		m.failAgentTurn(events.StageSynthesizer, err)
		return
	}

	response := m.response
	if response.synthesisDone {
		return
	}
	response.synthesisDone = true
	m.bus.Publish(events.NewAssistantSpeechFinal(m.turn.ID))
	if response.generationDone {
		m.completeAgentTurn()
	}
}

// completeAgentTurn commits the reply and yields the floor.
func (m *machine) completeAgentTurn() {
	agentTurn := m.turn
	text := m.response.text.String()
	m.releaseResponse(nil)

	m.closeTurn(turns.OutcomeCompleted)
	if text != "" {
		m.appendItem(conversations.Item{Role: conversations.RoleAgent, Text: text, TurnID: agentTurn.ID})
	}
	m.setState(turns.StateIdle, agentTurn.ID)
}

// interrupt cuts the agent turn short. Both stages are cancelled before this
// returns, so nothing of the old turn is accepted afterwards.
func (m *machine) interrupt() {
	agentTurn := m.turn
	text := m.response.text.String()
	m.releaseResponse(nil)

	m.audioOutput.Clear()
	m.bus.Publish(events.NewAssistantSpeechCleared(agentTurn.ID))

	if agentTurn.Advance(turns.StateInterrupted) {
		m.setState(turns.StateInterrupted, agentTurn.ID)
	}
	interruptionCounter.Add(m.ctx, 1)
	m.closeTurn(turns.OutcomeInterrupted)

	if m.policy == InterruptedResponseKeepTruncated && text != "" {
		m.appendItem(conversations.Item{
			Role:      conversations.RoleAgent,
			Text:      text,
			TurnID:    agentTurn.ID,
			Truncated: true,
		})
	}
}

// failAgentTurn closes the agent turn as indeterminate after a stage failed
// and returns the floor to nobody.
func (m *machine) failAgentTurn(stage events.Stage, err error) {
	agentTurn := m.turn
	m.releaseResponse(err)
	m.audioOutput.Clear()

	m.recordFault(stage, agentTurn.ID, err)
	m.closeTurn(turns.OutcomeIndeterminate)
	m.setState(turns.StateIdle, agentTurn.ID)
}

func (m *machine) releaseResponse(err error) {
	response := m.response
	if response == nil {
		return
	}
	m.response = nil

	response.generation.Cancel()
	response.synthesis.Cancel()
	if err != nil {
		response.span.RecordError(err)
		response.span.SetStatus(codes.Error, err.Error())
	}
	response.span.SetAttributes(attribute.Int("response.fragments", response.fragments))
	response.span.End()
}

func (m *machine) recordFault(stage events.Stage, turnID uuid.UUID, err error) {
	logger.Warn("stage failed", "stage", string(stage), "turn", turnID.String(), "error", err)
	faultCounter.Add(m.ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
	m.bus.Publish(events.NewStageFault(stage, turnID, err))
}

func (m *machine) closeTurn(outcome turns.Outcome) {
	turn := m.turn
	if !turn.Close(outcome, m.clock.Now()) {
		return
	}
	turnCounter.Add(m.ctx, 1, metric.WithAttributes(
		attribute.String("owner", string(turn.Owner)),
		attribute.String("outcome", string(outcome)),
	))
	m.bus.Publish(events.NewTurnEnded(*turn))
}

func (m *machine) appendItem(item conversations.Item) {
	m.conversation.Append(item)
	m.bus.Publish(events.NewConversationItemAdded(item))
}

func (m *machine) setState(to turns.State, turnID uuid.UUID) {
	from := m.sessionState
	if from == to {
		return
	}
	m.sessionState = to
	m.state.Store(to)
	m.bus.Publish(events.NewTurnStateChanged(turnID, from, to))
}

// shutdown force-closes whatever is open. An unfinished turn is abandoned
// and never reaches the conversation.
func (m *machine) shutdown() {
	m.detector.Close()

	var turnID uuid.UUID
	if m.turn.IsOpen() {
		turnID = m.turn.ID
	}
	if m.response != nil {
		m.releaseResponse(nil)
		m.audioOutput.Clear()
	}
	m.userText = nil
	m.closeTurn(turns.OutcomeAbandoned)
	m.setState(turns.StateIdle, turnID)

	m.bus.Publish(events.NewSessionEnded())
}
