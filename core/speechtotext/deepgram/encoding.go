package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/ema-tota/core/audio"
)

type encodingFormat string

const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

var supportedSampleRates = []int{8000, 16000, 24000, 32000, 48000}

// listenEncoding is the encoding pair sent with the listen request.
type listenEncoding struct {
	SampleRate int
	Format     encodingFormat
}

func toListenEncoding(encoding audio.EncodingInfo) (listenEncoding, error) {
	if !slices.Contains(supportedSampleRates, encoding.SampleRate) {
		return listenEncoding{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	var format encodingFormat
	switch encoding.Format {
	case audio.EncodingLinear16:
		format = encodingLinear16
	case audio.EncodingALaw:
		format = encodingALaw
	case audio.EncodingMulaw:
		format = encodingMulaw
	default:
		return listenEncoding{}, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}

	// companded telephony audio is only accepted at 8kHz
	if format != encodingLinear16 && encoding.SampleRate != 8000 {
		return listenEncoding{}, fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, format)
	}

	return listenEncoding{SampleRate: encoding.SampleRate, Format: format}, nil
}
