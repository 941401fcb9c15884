// Package miniaudio plays agent speech on the default output device and
// captures the microphone on the default input device.
package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-tota/core/audio"
)

var ErrClosed = errors.New("audio device closed")

// Client is both the audio input and the audio output of a local session.
// Both directions use 16-bit mono PCM at the same sample rate.
type Client struct {
	// audioContext is kept to be uninitialized on Close
	audioContext *malgo.AllocatedContext
	playback     playbackClient
	capture      captureClient
	encodingInfo audio.EncodingInfo

	closeOnce sync.Once
}

type ClientOption func(*Client)

// WithSampleRate overrides the device sample rate. Rates the providers can not
// take are rejected by them when the session starts.
func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.encodingInfo.SampleRate = sampleRate
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{encodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.playback.Init(audioCtx, client.encodingInfo); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}
	if err := client.playback.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	if err := client.capture.Init(audioCtx, client.encodingInfo); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return client, nil
}

// Stream delivers microphone audio to onAudio until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.capture.Start(onAudio); err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.capture.Stop(); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playback.SendAudio(audio)
}

// ClearBuffer drops speech that has not been played yet.
func (c *Client) ClearBuffer() {
	c.playback.ClearBuffer()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if err := c.capture.Uninit(); err != nil {
			logger.Warn("failed to release capture device", "error", err)
		}
		if err := c.playback.Uninit(); err != nil {
			logger.Warn("failed to release playback device", "error", err)
		}
		if c.audioContext != nil {
			_ = c.audioContext.Uninit()
			c.audioContext.Free()
		}
	})
}
