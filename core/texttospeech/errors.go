package texttospeech

import "errors"

var (
	ErrGeneratorClosed    = errors.New("speech generator closed")
	ErrGeneratorCancelled = errors.New("speech generator cancelled")
	ErrTextCompleted      = errors.New("speech generator text already completed")
	ErrUnsupportedVoice   = errors.New("unsupported voice")
)

// SynthesisError carries a failure reported by a TTS provider.
type SynthesisError struct {
	Provider string
	Code     string
	Message  string
	Cause    error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
