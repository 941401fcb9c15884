package orchestration

import (
	"reflect"

	"github.com/koscakluka/ema-tota/core/audio"
)

// audioOutput forwards agent speech to the configured output client. Without
// a client speech is dropped and clearing is a no-op.
type audioOutput struct {
	client AudioOutput
}

// Set replaces the configured output client. Nil and typed-nil clients are
// treated as unconfigured.
func (a *audioOutput) Set(client AudioOutput) {
	if a == nil {
		return
	}

	a.client = nil
	if isNilClient(client) {
		return
	}
	a.client = client
}

func (a *audioOutput) isConfigured() bool {
	return a != nil && a.client != nil
}

func (a *audioOutput) SendAudio(audio []byte) error {
	if !a.isConfigured() {
		return nil
	}
	return a.client.SendAudio(audio)
}

// Clear drops speech that was queued but not played yet.
func (a *audioOutput) Clear() {
	if a.isConfigured() {
		a.client.ClearBuffer()
	}
}

// EncodingInfo returns the active output encoding metadata.
//
// If no client is configured, the project default encoding is used.
func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if a.isConfigured() {
		return a.client.EncodingInfo()
	}

	return audio.GetDefaultEncodingInfo()
}

// isNilClient detects nil and typed-nil interface values so facades do not
// store unusable interface wrappers as configured clients.
func isNilClient(client any) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
