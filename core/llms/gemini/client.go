// Package gemini streams replies from Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	model   string
	baseURL string
}

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// NewClient creates a Gemini API client authenticated with apiKey, falling
// back to GEMINI_API_KEY and then GOOGLE_API_KEY when apiKey is empty.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not found")
	}

	options := clientOptions{model: DefaultModel}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		HTTPOptions: genai.HTTPOptions{BaseURL: options.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: options.model}, nil
}
