package orchestration

import (
	"context"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-tota/core/audio"
	"github.com/koscakluka/ema-tota/core/events"
	"github.com/koscakluka/ema-tota/core/llms"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"github.com/koscakluka/ema-tota/core/texttospeech"
	"github.com/koscakluka/ema-tota/core/turns"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

// fakeClock only moves when Advance is called. Due timers run on the caller
// of Advance, outside of the clock lock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	armed  int
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.armed++
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Set moves the clock to an arbitrary time without firing timers.
func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

// armedCount is how many timers were ever started.
func (c *fakeClock) armedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// recordingObserver keeps every event it sees. onEvent, when set, runs on
// the session loop before the event is recorded.
type recordingObserver struct {
	mu      sync.Mutex
	events  []events.Event
	onEvent func(events.Event)
}

func (r *recordingObserver) OnEvent(event events.Event) error {
	if r.onEvent != nil {
		r.onEvent(event)
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingObserver) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recordingObserver) kinds() []events.Kind {
	var kinds []events.Kind
	for _, event := range r.snapshot() {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (r *recordingObserver) count(kind events.Kind) int {
	count := 0
	for _, event := range r.snapshot() {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

type transition struct{ from, to turns.State }

func (r *recordingObserver) transitions() []transition {
	var transitions []transition
	for _, event := range r.snapshot() {
		if changed, ok := event.(events.TurnStateChanged); ok {
			transitions = append(transitions, transition{from: changed.From, to: changed.To})
		}
	}
	return transitions
}

func (r *recordingObserver) endedTurns() []turns.Turn {
	var ended []turns.Turn
	for _, event := range r.snapshot() {
		if turnEnded, ok := event.(events.TurnEnded); ok {
			ended = append(ended, turnEnded.Turn)
		}
	}
	return ended
}

func (r *recordingObserver) faults() []events.StageFault {
	var faults []events.StageFault
	for _, event := range r.snapshot() {
		if fault, ok := event.(events.StageFault); ok {
			faults = append(faults, fault)
		}
	}
	return faults
}

// speechToTextStub records the options of the recognition stream.
type speechToTextStub struct {
	mu         sync.Mutex
	options    speechtotext.TranscriptionOptions
	err        error
	audio      [][]byte
	closeCalls int
	opened     int
	// reopenErr fails every stream opened after the first one.
	reopenErr error
}

func (s *speechToTextStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	s.options = speechtotext.NewOptions(opts...)
	if s.opened > 1 && s.reopenErr != nil {
		return s.reopenErr
	}
	if s.err != nil {
		return s.err
	}
	return nil
}

func (s *speechToTextStub) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *speechToTextStub) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, append([]byte(nil), audio...))
	return nil
}

func (s *speechToTextStub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
}

func (s *speechToTextStub) transcriptionOptions() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// translateOnlyStub refuses verbatim mode, like a translation-only
// recognizer.
type translateOnlyStub struct{ speechToTextStub }

func (s *translateOnlyStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	if speechtotext.NewOptions(opts...).Mode == speechtotext.ModeVerbatim {
		return speechtotext.ErrVerbatimModeUnsupported
	}
	return nil
}

// replyGenerator answers every request with the same fragments.
type replyGenerator struct {
	fragments []string
	err       error

	mu       sync.Mutex
	requests []llms.Request
}

func (g *replyGenerator) PromptWithStream(_ context.Context, request llms.Request) llms.Stream {
	g.mu.Lock()
	g.requests = append(g.requests, request)
	g.mu.Unlock()
	return replyStream{fragments: g.fragments, err: g.err}
}

func (g *replyGenerator) recordedRequests() []llms.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.requests)
}

type replyStream struct {
	fragments []string
	err       error
}

func (s replyStream) Chunks(context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, fragment := range s.fragments {
			if !yield(llms.ContentChunk{Text: fragment}, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

// scriptedGenerator hands every stream to the test, which pushes fragments
// one at a time.
type scriptedGenerator struct {
	streams chan *scriptedStream
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{streams: make(chan *scriptedStream, 8)}
}

func (g *scriptedGenerator) PromptWithStream(ctx context.Context, request llms.Request) llms.Stream {
	stream := &scriptedStream{
		ctx:       ctx,
		request:   request,
		fragments: make(chan string),
		errs:      make(chan error, 1),
		end:       make(chan struct{}),
	}
	g.streams <- stream
	return stream
}

func (g *scriptedGenerator) next(t *testing.T) *scriptedStream {
	t.Helper()
	select {
	case stream := <-g.streams:
		return stream
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a generation request")
		return nil
	}
}

type scriptedStream struct {
	ctx       context.Context
	request   llms.Request
	fragments chan string
	errs      chan error
	end       chan struct{}
	endOnce   sync.Once
}

func (s *scriptedStream) Chunks(ctx context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.end:
				return
			case err := <-s.errs:
				yield(nil, err)
				return
			case fragment := <-s.fragments:
				if !yield(llms.ContentChunk{Text: fragment}, nil) {
					return
				}
			}
		}
	}
}

func (s *scriptedStream) send(t *testing.T, fragment string) {
	t.Helper()
	select {
	case s.fragments <- fragment:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out sending fragment %q", fragment)
	}
}

func (s *scriptedStream) finish() { s.endOnce.Do(func() { close(s.end) }) }

func (s *scriptedStream) fail(err error) { s.errs <- err }

func (s *scriptedStream) cancelled() bool { return s.ctx.Err() != nil }

// textToSpeechStub speaks every text as one audio frame holding its bytes.
type textToSpeechStub struct {
	mu         sync.Mutex
	generators []*speechGeneratorStub
	// failOnEnd makes EndOfText report a synthesis failure.
	failOnEnd error
	// holdEnd keeps the speech from ending until release is called.
	holdEnd bool
	// onCancel runs when any generator is cancelled.
	onCancel func()
}

func (s *textToSpeechStub) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	generator := &speechGeneratorStub{
		options:   texttospeech.NewOptions(opts...),
		failOnEnd: s.failOnEnd,
		holdEnd:   s.holdEnd,
		onCancel:  s.onCancel,
	}
	s.mu.Lock()
	s.generators = append(s.generators, generator)
	s.mu.Unlock()
	return generator, nil
}

func (s *textToSpeechStub) generator(i int) *speechGeneratorStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.generators) {
		return nil
	}
	return s.generators[i]
}

func (s *textToSpeechStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.generators)
}

type speechGeneratorStub struct {
	options   texttospeech.TextToSpeechOptions
	failOnEnd error
	holdEnd   bool
	onCancel  func()

	mu          sync.Mutex
	texts       []string
	ended       bool
	cancelCalls int
}

func (g *speechGeneratorStub) SendText(text string) error {
	g.mu.Lock()
	if g.cancelCalls > 0 {
		g.mu.Unlock()
		return texttospeech.ErrGeneratorCancelled
	}
	g.texts = append(g.texts, text)
	g.mu.Unlock()

	g.options.SpeechAudioCallback([]byte(text))
	return nil
}

func (g *speechGeneratorStub) EndOfText() error {
	g.mu.Lock()
	if g.cancelCalls > 0 {
		g.mu.Unlock()
		return texttospeech.ErrGeneratorClosed
	}
	g.ended = true
	g.mu.Unlock()

	switch {
	case g.failOnEnd != nil:
		g.options.ErrorCallback(g.failOnEnd)
	case !g.holdEnd:
		g.options.SpeechEndedCallback()
	}
	return nil
}

func (g *speechGeneratorStub) release() { g.options.SpeechEndedCallback() }

func (g *speechGeneratorStub) Cancel() error {
	g.mu.Lock()
	g.cancelCalls++
	g.mu.Unlock()
	if g.onCancel != nil {
		g.onCancel()
	}
	return nil
}

func (g *speechGeneratorStub) Close() error { return nil }

func (g *speechGeneratorStub) sentTexts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.texts)
}

func (g *speechGeneratorStub) cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelCalls > 0
}

func (g *speechGeneratorStub) endOfTextCalled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ended
}

type audioOutputStub struct {
	mu         sync.Mutex
	frames     [][]byte
	clearCalls int
	err        error
}

func (a *audioOutputStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (a *audioOutputStub) SendAudio(audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.frames = append(a.frames, audio)
	return nil
}

func (a *audioOutputStub) ClearBuffer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearCalls++
}

func (a *audioOutputStub) played() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.frames)
}

func (a *audioOutputStub) cleared() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clearCalls
}

// scriptedAudioInput delivers its chunks and then waits for ctx or Close.
type scriptedAudioInput struct {
	chunks [][]byte
	closed chan struct{}
	once   sync.Once
}

func (a *scriptedAudioInput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (a *scriptedAudioInput) Stream(ctx context.Context, onAudio func([]byte)) error {
	for _, chunk := range a.chunks {
		onAudio(chunk)
	}
	select {
	case <-ctx.Done():
	case <-a.closed:
	}
	return nil
}

func (a *scriptedAudioInput) Close() {
	a.once.Do(func() { close(a.closed) })
}
