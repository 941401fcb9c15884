package sarvam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tota/core/audio"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "wss://api.sarvam.ai"

// TranscriptionClient streams audio to the Sarvam speech-to-text websocket.
// Sarvam reports only finished transcripts, each one closing its utterance.
type TranscriptionClient struct {
	apiKey  string
	baseURL string
	model   Model

	conn   *websocket.Conn
	connMu sync.Mutex
	cancel context.CancelFunc

	encoding audio.EncodingInfo
}

type ClientOption func(*TranscriptionClient)

func WithModel(model Model) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

// WithBaseURL overrides the websocket host, mostly useful for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *TranscriptionClient) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// NewTranscriptionClient creates a client authenticated with apiKey, falling
// back to SARVAM_API_KEY when apiKey is empty.
func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		var ok bool
		if apiKey, ok = os.LookupEnv("SARVAM_API_KEY"); !ok {
			return nil, fmt.Errorf("sarvam api key not found")
		}
	}

	client := &TranscriptionClient{apiKey: apiKey, baseURL: defaultBaseURL, model: DefaultModel}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	_, span := tracer.Start(ctx, "open transcription stream")
	defer span.End()

	options := speechtotext.NewOptions(opts...)
	span.SetAttributes(
		attribute.String("request.model", string(c.model)),
		attribute.String("request.mode", string(options.Mode)),
	)

	supported, explicit := c.model.supportsMode(options.Mode)
	if !supported {
		var err error
		if options.Mode == speechtotext.ModeVerbatim {
			err = fmt.Errorf("%w: model %s", speechtotext.ErrVerbatimModeUnsupported, c.model)
		} else {
			err = fmt.Errorf("model %s does not support %q mode", c.model, options.Mode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if options.EncodingInfo.Format != audio.EncodingLinear16 {
		return fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format.Name())
	}

	language := options.Language
	if language == "" {
		language = "unknown"
	}

	query := url.Values{}
	query.Set("model", string(c.model))
	query.Set("language-code", language)
	query.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	query.Set("input_audio_codec", "pcm_s16le")
	query.Set("vad_signals", "true")
	query.Set("flush_signal", "true")
	if explicit {
		query.Set("mode", string(options.Mode))
	}

	streamURL := c.baseURL + c.model.path() + "?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL,
		http.Header{"Api-Subscription-Key": {c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to sarvam: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.connMu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.encoding = options.EncodingInfo
	c.connMu.Unlock()

	go c.readAndProcessMessages(ctx, conn, options)
	return nil
}

type audioMessage struct {
	Audio struct {
		Data       string `json:"data"`
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sample_rate"`
	} `json:"audio"`
}

func (c *TranscriptionClient) SendAudio(audio []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}

	msg := audioMessage{}
	msg.Audio.Data = base64.StdEncoding.EncodeToString(audio)
	msg.Audio.Encoding = "audio/wav"
	msg.Audio.SampleRate = c.encoding.SampleRate
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write audio to sarvam: %w", err)
	}
	return nil
}

// Flush asks the server to finish the transcript of the audio sent so far.
func (c *TranscriptionClient) Flush() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "flush"}); err != nil {
		return fmt.Errorf("failed to flush sarvam stream: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn == nil {
		return nil
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close sarvam websocket: %w", err)
	}
	return nil
}

type serverMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type transcriptData struct {
	RequestID    string `json:"request_id"`
	Transcript   string `json:"transcript"`
	LanguageCode string `json:"language_code"`
}

type eventData struct {
	SignalType string `json:"signal_type"`
}

type errorData struct {
	Error string `json:"error"`
	Code  any    `json:"code"`
}

func (c *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Error("failed to read sarvam websocket message", "error", err)
				options.FaultCallback(fmt.Errorf("sarvam stream failed: %w", err))
			}
			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			conn.Close()
			return
		}

		if err := c.processMessage(msg, options); err != nil {
			logger.Error("sarvam stream reported an error", "error", err)
			options.FaultCallback(err)
			_ = c.Close()
			return
		}
	}
}

// processMessage delivers a server message to the callbacks. A returned
// error means the server gave up on the stream.
func (c *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) error {
	var parsed serverMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		logger.Warn("failed to unmarshal sarvam message", "error", err)
		return nil
	}

	switch parsed.Type {
	case "data":
		var data transcriptData
		if err := json.Unmarshal(parsed.Data, &data); err != nil {
			logger.Warn("failed to unmarshal sarvam transcript", "error", err)
			return nil
		}
		transcript := strings.TrimSpace(data.Transcript)
		if transcript == "" {
			return nil
		}
		utteranceID := data.RequestID
		if utteranceID == "" {
			utteranceID = uuid.NewString()
		}
		options.TranscriptCallback(speechtotext.Transcript{
			UtteranceID: utteranceID,
			Text:        transcript,
			IsFinal:     true,
		})

	case "events":
		var data eventData
		if err := json.Unmarshal(parsed.Data, &data); err != nil {
			logger.Warn("failed to unmarshal sarvam event", "error", err)
			return nil
		}
		switch data.SignalType {
		case "START_SPEECH":
			options.SpeechStartedCallback()
		case "END_SPEECH":
			if err := c.Flush(); err != nil {
				logger.Warn("failed to flush after end of speech", "error", err)
			}
			options.SpeechEndedCallback()
		}

	case "error":
		var data errorData
		_ = json.Unmarshal(parsed.Data, &data)
		return fmt.Errorf("sarvam error %v: %s", data.Code, data.Error)
	}
	return nil
}
