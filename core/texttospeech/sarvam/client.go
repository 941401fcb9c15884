package sarvam

import (
	"fmt"
	"os"
	"strings"
)

const (
	defaultBaseURL = "wss://api.sarvam.ai"
	DefaultModel   = "bulbul:v3"
	DefaultSpeaker = "kavya"
)

// TextToSpeechClient opens streaming synthesis sessions against the Sarvam
// text-to-speech websocket. Every speech generator owns its own connection.
type TextToSpeechClient struct {
	apiKey  string
	baseURL string
	model   string
}

type ClientOption func(*TextToSpeechClient)

func WithModel(model string) ClientOption {
	return func(c *TextToSpeechClient) { c.model = model }
}

// WithBaseURL overrides the websocket host, mostly useful for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// NewTextToSpeechClient creates a client authenticated with apiKey, falling
// back to SARVAM_API_KEY when apiKey is empty.
func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		var ok bool
		if apiKey, ok = os.LookupEnv("SARVAM_API_KEY"); !ok {
			return nil, fmt.Errorf("sarvam api key not found")
		}
	}

	client := &TextToSpeechClient{apiKey: apiKey, baseURL: defaultBaseURL, model: DefaultModel}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}
