package texttospeech

import "github.com/koscakluka/ema-tota/core/audio"

type TextToSpeechOptions struct {
	// Language is the BCP-47 code of the language the text is written in.
	Language string
	// Voice is the provider speaker id.
	Voice string

	// SpeechAudioCallback is called when the TTS client produces audio
	SpeechAudioCallback func(audio []byte)
	// SpeechEndedCallback is called once the TTS client has produced all the
	// speech for the text sent before EndOfText.
	SpeechEndedCallback func()
	// ErrorCallback is called when the TTS client fails. No speech callbacks
	// follow it.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithLanguage(language string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Language = language }
}

func WithVoice(voice string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Voice = voice }
}

func WithSpeechAudioCallback(callback func([]byte)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechAudioCallback = callback }
}

func WithSpeechEndedCallback(callback func()) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(error)) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// NewOptions applies opts over the default encoding and no-op callbacks.
func NewOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{
		SpeechAudioCallback: func([]byte) {},
		SpeechEndedCallback: func() {},
		ErrorCallback:       func(error) {},
		EncodingInfo:        audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type SpeechGenerator interface {
	// SendText sends text to [SpeechGenerator]. It is guaranteed that the
	// speech will be generated in the order text is sent.
	//
	// SendText will error if EndOfText, Cancel or Close has been called.
	SendText(string) error
	// EndOfText sends a signal to the [SpeechGenerator] that no more text will
	// be sent. After EndOfText is called, [SpeechGenerator] will Close after
	// all the speech has been generated.
	//
	// EndOfText will error if Cancel or Close has been called.
	// Repeated calls to EndOfText are ignored.
	EndOfText() error
	// Cancel immediately cancels the further speech generation. It also closes
	// [SpeechGenerator].
	//
	// Repeated calls to Cancel are ignored.
	Cancel() error
	// Close immediately closes the [SpeechGenerator]. It is guaranteed that no
	// more speech will be generated after this call.
	//
	// Repeated calls to Close are ignored.
	Close() error
}
