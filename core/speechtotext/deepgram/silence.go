package deepgram

import (
	"context"
	"time"

	"github.com/koscakluka/ema-tota/core/audio"
)

const (
	fillerTick        = 50 * time.Millisecond
	silenceWindow     = time.Second
	keepAliveInterval = 5 * time.Second
)

type fillerState int

const (
	fillerWaiting fillerState = iota
	fillerSilence
	fillerKeepAlive
)

type fillerAction int

const (
	fillNothing fillerAction = iota
	fillSilence
	fillKeepAlive
)

// silenceFiller decides what to send while the microphone is quiet. Deepgram
// only finalizes an utterance once it hears silence, so for the first second
// without audio silence frames are sent; after that the socket is kept open
// with a keep-alive every five seconds.
type silenceFiller struct {
	state         fillerState
	silenceSince  time.Time
	lastKeepAlive time.Time
}

// next advances the filler given how long no audio has been sent.
func (f *silenceFiller) next(now time.Time, idle time.Duration) fillerAction {
	if idle < fillerTick {
		f.state = fillerWaiting
		return fillNothing
	}

	switch f.state {
	case fillerWaiting:
		f.state, f.silenceSince = fillerSilence, now
		return fillNothing
	case fillerSilence:
		if now.Sub(f.silenceSince) >= silenceWindow {
			f.state, f.lastKeepAlive = fillerKeepAlive, now
			return fillNothing
		}
		return fillSilence
	default:
		if now.Sub(f.lastKeepAlive) >= keepAliveInterval {
			f.lastKeepAlive = now
			return fillKeepAlive
		}
		return fillNothing
	}
}

func silenceChunk(encoding audio.EncodingInfo, duration time.Duration) []byte {
	chunk := make([]byte, int64(encoding.SampleRate*encoding.Format.ByteSize())*duration.Milliseconds()/1000)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}
	return chunk
}

func (s *TranscriptionClient) fillSilence(ctx context.Context, encoding audio.EncodingInfo) {
	ticker := time.NewTicker(fillerTick)
	defer ticker.Stop()

	chunk := silenceChunk(encoding, fillerTick)
	var filler silenceFiller
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			switch filler.next(now, s.idleFor()) {
			case fillSilence:
				if err := s.sendSilence(chunk); err != nil {
					logger.Warn("failed to send silence to deepgram", "error", err)
				}
			case fillKeepAlive:
				s.sendKeepAlive()
			}
		}
	}
}
