package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-tota/core/audio"
)

type playbackClient struct {
	mu     sync.Mutex
	device *malgo.Device

	queue pcmQueue
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, encodingInfo audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const channels = 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = channels
	config.Alsa.NoMMap = 1
	// ~100ms periods
	config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate / 10)
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			c.queue.Read(output[:int(frameCount)*bytesPerFrame])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	c.device = device
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return ErrClosed
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return ErrClosed
	}
	if !device.IsStarted() {
		return fmt.Errorf("playback device not started")
	}

	c.queue.Write(audio)
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.queue.Clear()
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	c.queue.Clear()
	return nil
}

// pcmQueue holds speech between the session and the device callback.
type pcmQueue struct {
	mu      sync.Mutex
	pending []byte
}

func (q *pcmQueue) Write(audio []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, audio...)
	q.mu.Unlock()
}

// Read fills out with queued audio and pads the rest with silence. It
// returns how many queued bytes were used.
func (q *pcmQueue) Read(out []byte) int {
	q.mu.Lock()
	n := copy(out, q.pending)
	q.pending = q.pending[n:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	q.mu.Unlock()

	clear(out[n:])
	return n
}

func (q *pcmQueue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

func (q *pcmQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
