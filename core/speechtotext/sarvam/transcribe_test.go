package sarvam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tota/core/speechtotext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	query    map[string]string
	apiKey   string
	received []audioMessage
	conn     *websocket.Conn
	ready    chan struct{}
}

func newFakeServer(t *testing.T, onAudio func(conn *websocket.Conn, msg audioMessage)) *fakeServer {
	t.Helper()
	server := &fakeServer{ready: make(chan struct{})}
	upgrader := websocket.Upgrader{}

	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		server.mu.Lock()
		server.query = map[string]string{}
		for key := range r.URL.Query() {
			server.query[key] = r.URL.Query().Get(key)
		}
		server.query["path"] = r.URL.Path
		server.apiKey = r.Header.Get("Api-Subscription-Key")
		server.conn = conn
		server.mu.Unlock()
		close(server.ready)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var audio audioMessage
			if err := json.Unmarshal(msg, &audio); err != nil || audio.Audio.Data == "" {
				continue
			}
			server.mu.Lock()
			server.received = append(server.received, audio)
			server.mu.Unlock()
			if onAudio != nil {
				onAudio(conn, audio)
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func (s *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestTranscribeStreamsAudioAndDeliversFinals(t *testing.T) {
	server := newFakeServer(t, func(conn *websocket.Conn, msg audioMessage) {
		_ = conn.WriteJSON(map[string]any{
			"type": "data",
			"data": map[string]any{"request_id": "req-1", "transcript": " namaskaram ", "language_code": "ml-IN"},
		})
	})

	client, err := NewTranscriptionClient("secret", WithBaseURL(server.wsURL()))
	require.NoError(t, err)

	transcripts := make(chan speechtotext.Transcript, 1)
	err = client.Transcribe(context.Background(),
		speechtotext.WithMode(speechtotext.ModeVerbatim),
		speechtotext.WithTranscriptCallback(func(transcript speechtotext.Transcript) { transcripts <- transcript }),
	)
	require.NoError(t, err)
	defer client.Close()

	<-server.ready
	require.NoError(t, client.SendAudio([]byte{0, 1, 2, 3}))

	select {
	case transcript := <-transcripts:
		assert.Equal(t, speechtotext.Transcript{UtteranceID: "req-1", Text: "namaskaram", IsFinal: true}, transcript)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transcript")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal(t, "secret", server.apiKey)
	assert.Equal(t, "saaras:v3", server.query["model"])
	assert.Equal(t, "verbatim", server.query["mode"])
	assert.Equal(t, "unknown", server.query["language-code"])
	assert.Equal(t, "/speech-to-text/ws", server.query["path"])
	require.Len(t, server.received, 1)
	assert.Equal(t, "AAECAw==", server.received[0].Audio.Data)
	assert.Equal(t, 16000, server.received[0].Audio.SampleRate)
}

func TestTranscribeRejectsVerbatimOnTranslateOnlyModel(t *testing.T) {
	client, err := NewTranscriptionClient("secret", WithModel(ModelSaarasV25), WithBaseURL("ws://127.0.0.1:1"))
	require.NoError(t, err)

	err = client.Transcribe(context.Background(), speechtotext.WithMode(speechtotext.ModeVerbatim))
	assert.ErrorIs(t, err, speechtotext.ErrVerbatimModeUnsupported)
}

func TestServerErrorTriggersFault(t *testing.T) {
	server := newFakeServer(t, func(conn *websocket.Conn, msg audioMessage) {
		_ = conn.WriteJSON(map[string]any{
			"type": "error",
			"data": map[string]any{"error": "quota exceeded", "code": 429},
		})
	})

	client, err := NewTranscriptionClient("secret", WithBaseURL(server.wsURL()))
	require.NoError(t, err)

	faults := make(chan error, 1)
	require.NoError(t, client.Transcribe(context.Background(),
		speechtotext.WithFaultCallback(func(err error) { faults <- err }),
	))
	defer client.Close()

	<-server.ready
	require.NoError(t, client.SendAudio([]byte{0, 0}))

	select {
	case err := <-faults:
		assert.Contains(t, err.Error(), "quota exceeded")
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fault")
	}
}

func TestAbruptDisconnectTriggersFaultButCloseDoesNot(t *testing.T) {
	server := newFakeServer(t, nil)

	client, err := NewTranscriptionClient("secret", WithBaseURL(server.wsURL()))
	require.NoError(t, err)

	faults := make(chan error, 2)
	require.NoError(t, client.Transcribe(context.Background(),
		speechtotext.WithFaultCallback(func(err error) { faults <- err }),
	))

	<-server.ready
	server.mu.Lock()
	_ = server.conn.UnderlyingConn().Close()
	server.mu.Unlock()

	select {
	case <-faults:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fault after disconnect")
	}

	require.NoError(t, client.Close())
	select {
	case err := <-faults:
		t.Fatalf("expected no fault after close, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEndOfSpeechFlushesStream(t *testing.T) {
	client, err := NewTranscriptionClient("secret")
	require.NoError(t, err)

	ended := 0
	options := speechtotext.NewOptions(speechtotext.WithSpeechEndedCallback(func() { ended++ }))

	require.NoError(t, client.processMessage([]byte(`{"type":"events","data":{"signal_type":"END_SPEECH"}}`), options))
	assert.Equal(t, 1, ended)
}
