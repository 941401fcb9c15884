package orchestration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-tota/core/audio"
	"github.com/koscakluka/ema-tota/core/speechtotext"
)

func TestWithAudioInputConfiguresAudioInputFacade(t *testing.T) {
	inputClient := &scriptedAudioInput{closed: make(chan struct{})}
	o := NewOrchestrator(WithAudioInput(inputClient))

	if !o.audioInput.IsConfigured() {
		t.Fatalf("expected audio input facade to be configured")
	}
	if o.audioInput.base != inputClient {
		t.Fatalf("expected facade client to match configured audio input")
	}
}

func TestAudioInputFacadeUsesDefaultEncodingInfoWhenUnset(t *testing.T) {
	var facade audioInput

	if facade.IsConfigured() {
		t.Fatalf("expected unset facade to be unconfigured")
	}
	if got, want := facade.EncodingInfo(), audio.GetDefaultEncodingInfo(); got != want {
		t.Fatalf("expected default encoding info %+v, got %+v", want, got)
	}
}

func TestAudioInputFacadeStreamsUntilClosed(t *testing.T) {
	inputClient := &scriptedAudioInput{chunks: [][]byte{{0x01}, {0x02}}, closed: make(chan struct{})}
	var facade audioInput
	facade.Set(inputClient)

	var callbackCalls atomic.Int32
	facade.Start(context.Background(), func([]byte) { callbackCalls.Add(1) })
	facade.Start(context.Background(), func([]byte) { callbackCalls.Add(1) })

	waitForCondition(t, time.Second, "captured audio", func() bool {
		return callbackCalls.Load() == 2 && facade.IsCapturing()
	})

	facade.Close()
	waitForCondition(t, time.Second, "capture to stop", func() bool { return !facade.IsCapturing() })
	if got := callbackCalls.Load(); got != 2 {
		t.Fatalf("expected a second start to be ignored, got %d callback calls", got)
	}
}

func TestAudioOutputFacadeTreatsTypedNilAsUnconfigured(t *testing.T) {
	var outputClient *audioOutputStub
	var facade audioOutput
	facade.Set(outputClient)

	if facade.isConfigured() {
		t.Fatalf("expected typed nil output client to be treated as unconfigured")
	}
	if err := facade.SendAudio([]byte{0x01}); err != nil {
		t.Fatalf("expected unconfigured facade to drop audio, got %v", err)
	}
	facade.Clear()
}

func TestAudioOutputFacadeSetTypedNilClearsConfiguration(t *testing.T) {
	var facade audioOutput
	facade.Set(&audioOutputStub{})
	if !facade.isConfigured() {
		t.Fatalf("expected facade to start configured")
	}

	var outputClient *audioOutputStub
	facade.Set(outputClient)
	if facade.isConfigured() {
		t.Fatalf("expected facade to become unconfigured after setting typed nil output client")
	}
}

func TestAudioOutputFacadeForwardsToClient(t *testing.T) {
	client := &audioOutputStub{}
	var facade audioOutput
	facade.Set(client)

	if err := facade.SendAudio([]byte{0x01}); err != nil {
		t.Fatalf("expected audio to be sent, got %v", err)
	}
	facade.Clear()

	if len(client.played()) != 1 || client.cleared() != 1 {
		t.Fatalf("expected one frame and one clear, got %d and %d", len(client.played()), client.cleared())
	}
}

func TestSpeechToTextFacadeForcesVerbatimMode(t *testing.T) {
	client := &speechToTextStub{}
	var facade speechToText
	facade.set(client)

	if err := facade.Start(context.Background(), speechtotext.WithMode(speechtotext.ModeTranslate)); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if got := client.transcriptionOptions().Mode; got != speechtotext.ModeVerbatim {
		t.Fatalf("expected verbatim mode, got %s", got)
	}
}

func TestSpeechToTextFacadeWrapsStartErrors(t *testing.T) {
	failure := errors.New("handshake failed")
	var facade speechToText
	facade.set(&speechToTextStub{err: failure})

	if err := facade.Start(context.Background()); !errors.Is(err, failure) {
		t.Fatalf("expected start error to wrap %v, got %v", failure, err)
	}
}

func TestSpeechToTextFacadeWithoutClientIsNoop(t *testing.T) {
	var facade speechToText

	if err := facade.Start(context.Background()); err != nil {
		t.Fatalf("expected start without client to succeed, got %v", err)
	}
	if err := facade.SendAudio([]byte{0x01}); err != nil {
		t.Fatalf("expected send without client to succeed, got %v", err)
	}
	if err := facade.Close(context.Background()); err != nil {
		t.Fatalf("expected close without client to succeed, got %v", err)
	}
}

func TestPanicSafeNamedWorkerRecovers(t *testing.T) {
	err := panicSafeNamedWorker("test", func(context.Context) error { panic("boom") })(context.Background())
	if err == nil {
		t.Fatalf("expected panic to be reported as an error")
	}
}

func TestSpeechToTextFacadeReopensWithStartOptions(t *testing.T) {
	client := &speechToTextStub{}
	var facade speechToText
	facade.set(client)

	if err := facade.Start(context.Background(), speechtotext.WithLanguage("hi-IN")); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if err := facade.Reopen(context.Background()); err != nil {
		t.Fatalf("expected reopen to succeed, got %v", err)
	}

	options := client.transcriptionOptions()
	if client.openCount() != 2 || options.Language != "hi-IN" || options.Mode != speechtotext.ModeVerbatim {
		t.Fatalf("expected second stream with the start options, got %d streams and %+v", client.openCount(), options)
	}

	if err := facade.Close(context.Background()); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := facade.Reopen(context.Background()); !errors.Is(err, errSpeechToTextClosed) {
		t.Fatalf("expected errSpeechToTextClosed, got %v", err)
	}
	if got := client.openCount(); got != 2 {
		t.Fatalf("expected no stream after close, got %d", got)
	}
}
