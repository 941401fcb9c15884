package deepgram

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

type TranscriptionClient struct {
	apiKey    string
	listenURL string

	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs time.Time

	utteranceMu sync.Mutex
	utteranceID string

	cancel context.CancelFunc
}

type ClientOption func(*TranscriptionClient)

// WithListenURL overrides the listen endpoint, mostly useful for tests.
func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

// NewTranscriptionClient creates a client authenticated with apiKey, falling
// back to DEEPGRAM_API_KEY when apiKey is empty.
func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		var ok bool
		if apiKey, ok = os.LookupEnv("DEEPGRAM_API_KEY"); !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
	}

	client := &TranscriptionClient{apiKey: apiKey, listenURL: defaultListenURL}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	cancel := s.cancel
	s.connMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := s.StopStream(); err != nil {
		return err
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close deepgram websocket: %w", err)
		}
	}
	return nil
}
