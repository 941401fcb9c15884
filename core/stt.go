package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-tota/core/speechtotext"
)

var errSpeechToTextClosed = errors.New("speech-to-text client closed")

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText

	mu      sync.Mutex
	options []speechtotext.TranscriptionOption
	closed  bool
}

func (s *speechToText) set(client SpeechToText) {
	if s == nil {
		return
	}
	s.client = nil
	if !isNilClient(client) {
		s.client = client
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

// Start opens the recognition stream in verbatim mode. A client that can not
// transcribe verbatim fails here, before the session starts.
func (s *speechToText) Start(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	if !s.isConfigured() {
		return nil
	}

	opts = append(opts, speechtotext.WithMode(speechtotext.ModeVerbatim))
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.client.Transcribe(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}
	s.options = opts
	return nil
}

// Reopen opens the recognition stream again with the options of the last
// successful Start. It fails once the client is closed.
func (s *speechToText) Reopen(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSpeechToTextClosed
	}
	if err := s.client.Transcribe(ctx, s.options...); err != nil {
		return fmt.Errorf("failed to reopen transcription stream: %w", err)
	}
	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}
