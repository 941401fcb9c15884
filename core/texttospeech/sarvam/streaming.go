package sarvam

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tota/core/audio"
	"github.com/koscakluka/ema-tota/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const providerName = "sarvam"

type speechGenerator struct {
	ws *websocket.Conn
	mu sync.Mutex

	options texttospeech.TextToSpeechOptions

	textSent     atomic.Bool
	textComplete atomic.Bool
	cancelled    atomic.Bool
	closed       atomic.Bool

	endOnce sync.Once
}

func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	ctx, span := tracer.Start(ctx, "open speech generator")
	defer span.End()

	options := texttospeech.NewOptions(opts...)
	if options.Voice == "" {
		options.Voice = DefaultSpeaker
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.String("request.language", options.Language),
		attribute.String("request.voice", options.Voice),
	)

	if options.EncodingInfo.Format != audio.EncodingLinear16 {
		err := fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format.Name())
		span.RecordError(err)
		return nil, err
	}

	query := url.Values{}
	query.Set("model", c.model)
	query.Set("send_completion_event", "true")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		c.baseURL+"/text-to-speech/ws?"+query.Encode(),
		http.Header{"Api-Subscription-Key": {c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to sarvam: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g := &speechGenerator{ws: conn, options: options}
	if err := g.sendWebsocketMessage(configMsg(options)); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to configure sarvam speech: %w", err)
		span.RecordError(err)
		return nil, err
	}

	go g.processIncomingMessages()

	return g, nil
}

func (g *speechGenerator) processIncomingMessages() {
	for {
		_, msg, err := g.ws.ReadMessage()
		if err != nil {
			if !g.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				g.fail(&texttospeech.SynthesisError{Provider: providerName, Message: "websocket read failed", Cause: err})
			}
			_ = g.Close()
			return
		}

		var parsed struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to unmarshal sarvam message", "error", err)
			continue
		}

		switch parsed.Type {
		case "audio":
			var data struct {
				Audio string `json:"audio"`
			}
			if err := json.Unmarshal(parsed.Data, &data); err != nil {
				logger.Warn("failed to unmarshal sarvam audio", "error", err)
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(data.Audio)
			if err != nil {
				logger.Warn("failed to decode sarvam audio", "error", err)
				continue
			}
			if len(chunk) > 0 && g.active() {
				g.options.SpeechAudioCallback(chunk)
			}

		case "event":
			var data struct {
				EventType string `json:"event_type"`
			}
			if err := json.Unmarshal(parsed.Data, &data); err != nil {
				continue
			}
			if data.EventType == "final" && g.textComplete.Load() {
				g.end()
				_ = g.Close()
				return
			}

		case "error":
			var data struct {
				Message string `json:"message"`
				Code    any    `json:"code"`
			}
			_ = json.Unmarshal(parsed.Data, &data)
			g.fail(&texttospeech.SynthesisError{
				Provider: providerName,
				Code:     fmt.Sprint(data.Code),
				Message:  data.Message,
			})
			_ = g.Close()
			return
		}
	}
}

func (g *speechGenerator) active() bool {
	return !g.cancelled.Load() && !g.closed.Load()
}

func (g *speechGenerator) end() {
	if !g.active() {
		return
	}
	g.endOnce.Do(g.options.SpeechEndedCallback)
}

func (g *speechGenerator) fail(err error) {
	if !g.active() {
		return
	}
	g.endOnce.Do(func() { g.options.ErrorCallback(err) })
}

func (g *speechGenerator) SendText(text string) error {
	if g.closed.Load() {
		return texttospeech.ErrGeneratorClosed
	} else if g.cancelled.Load() {
		return texttospeech.ErrGeneratorCancelled
	} else if g.textComplete.Load() {
		return texttospeech.ErrTextCompleted
	}

	if text == "" {
		return nil
	}
	if err := g.sendWebsocketMessage(textMsg(text)); err != nil {
		return fmt.Errorf("failed to send text to sarvam: %w", err)
	}
	g.textSent.Store(true)
	return nil
}

func (g *speechGenerator) EndOfText() error {
	if g.closed.Load() {
		return texttospeech.ErrGeneratorClosed
	} else if g.cancelled.Load() {
		return texttospeech.ErrGeneratorCancelled
	}
	if !g.textComplete.CompareAndSwap(false, true) {
		return nil
	}

	if !g.textSent.Load() {
		g.end()
		return g.Close()
	}

	if err := g.sendWebsocketMessage(flushMsg); err != nil {
		return fmt.Errorf("failed to flush sarvam speech: %w", err)
	}
	return nil
}

func (g *speechGenerator) Cancel() error {
	if !g.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	return g.Close()
}

func (g *speechGenerator) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	closeErr := g.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err := g.ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(closeErr, err))
	}
	return nil
}

type websocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

var flushMsg = websocketMessage{Type: "flush"}

func textMsg(text string) websocketMessage {
	return websocketMessage{Type: "text", Data: map[string]string{"text": text}}
}

func configMsg(options texttospeech.TextToSpeechOptions) websocketMessage {
	return websocketMessage{Type: "config", Data: map[string]string{
		"target_language_code": options.Language,
		"speaker":              options.Voice,
		"output_audio_codec":   "linear16",
		"speech_sample_rate":   strconv.Itoa(options.EncodingInfo.SampleRate),
	}}
}

func (g *speechGenerator) sendWebsocketMessage(msg websocketMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed.Load() {
		return texttospeech.ErrGeneratorClosed
	}

	if err := g.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
