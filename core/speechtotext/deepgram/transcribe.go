package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
)

// Transcribe opens a streaming recognition session. Every interim result is
// delivered as a partial of the current utterance and every finalized
// segment closes it, so a new utterance id starts after each final.
//
// Deepgram only transcribes what was spoken, so translate mode is rejected.
func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	_, span := tracer.Start(ctx, "open transcription stream")
	defer span.End()

	options := speechtotext.NewOptions(opts...)
	span.SetAttributes(attribute.String("request.mode", string(options.Mode)))
	if options.Mode != speechtotext.ModeVerbatim {
		return fmt.Errorf("deepgram does not support %q mode", options.Mode)
	}

	encoding, err := toListenEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := s.connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   string(encoding.Format),
		language:   options.Language,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.connMu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()
	s.nextUtterance()

	go s.readAndProcessMessages(ctx, conn, options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func (s *TranscriptionClient) connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(s.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	language := options.language
	if language == "" {
		language = "multi"
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (s *TranscriptionClient) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}
	if err := s.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		logger.Warn("failed to write keep alive to deepgram", "error", err)
	}
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) StopStream() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		if err := s.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
			return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
		}
	}
	return nil
}

func (s *TranscriptionClient) idleFor() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.fillSilence(silenceCtx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Error("failed to read deepgram websocket message", "error", err)
				options.FaultCallback(fmt.Errorf("deepgram stream failed: %w", err))
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		if len(transcript) > 0 {
			options.TranscriptCallback(speechtotext.Transcript{
				UtteranceID: s.currentUtterance(),
				Text:        transcript,
				IsFinal:     msgResp.IsFinal,
			})
		}
		if msgResp.IsFinal {
			s.nextUtterance()
		}
		if msgResp.SpeechFinal {
			options.SpeechEndedCallback()
		}

	case api.TypeUtteranceEndResponse:
		options.SpeechEndedCallback()

	case api.TypeSpeechStartedResponse:
		options.SpeechStartedCallback()
	}
}

func (s *TranscriptionClient) currentUtterance() string {
	s.utteranceMu.Lock()
	defer s.utteranceMu.Unlock()
	return s.utteranceID
}

func (s *TranscriptionClient) nextUtterance() {
	s.utteranceMu.Lock()
	defer s.utteranceMu.Unlock()
	s.utteranceID = uuid.NewString()
}
