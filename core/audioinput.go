package orchestration

import (
	"context"
	"sync/atomic"

	"github.com/koscakluka/ema-tota/core/audio"
)

type audioInput struct {
	// base stores the configured input client used for streaming audio.
	base AudioInput

	// isCapturing reports whether the input client is currently streaming.
	isCapturing atomic.Bool
}

func (a *audioInput) Set(client AudioInput) {
	if a == nil {
		return
	}

	a.base = nil
	a.isCapturing.Store(false)
	if isNilClient(client) {
		return
	}
	a.base = client
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.base != nil }
func (a *audioInput) IsCapturing() bool  { return a != nil && a.isCapturing.Load() }

// Start streams captured audio to onAudio until ctx is done. Capture errors
// are logged; the session keeps running without microphone input.
func (a *audioInput) Start(ctx context.Context, onAudio func(audio []byte)) {
	if !a.IsConfigured() {
		return
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer a.isCapturing.Store(false)
		if err := a.base.Stream(ctx, onAudio); err != nil && ctx.Err() == nil {
			logger.Error("failed to stream audio input", "error", err)
		}
	}()
}

func (a *audioInput) Close() {
	if a.IsConfigured() {
		a.base.Close()
	}
	a.isCapturing.Store(false)
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if !a.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}

	return a.base.EncodingInfo()
}
