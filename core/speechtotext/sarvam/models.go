package sarvam

import "github.com/koscakluka/ema-tota/core/speechtotext"

type Model string

const (
	// ModelSaarasV3 transcribes or translates depending on the requested mode.
	ModelSaarasV3 Model = "saaras:v3"
	// ModelSaarasV25 always translates to English.
	ModelSaarasV25 Model = "saaras:v2.5"
	// ModelSaarikaV25 always transcribes in the spoken language.
	ModelSaarikaV25 Model = "saarika:v2.5"

	DefaultModel = ModelSaarasV3
)

// supportsMode reports whether model can honour mode, and whether the mode
// has to be passed explicitly on the connection.
func (m Model) supportsMode(mode speechtotext.Mode) (supported bool, explicit bool) {
	switch m {
	case ModelSaarasV3:
		return mode == speechtotext.ModeVerbatim || mode == speechtotext.ModeTranslate, true
	case ModelSaarasV25:
		return mode == speechtotext.ModeTranslate, false
	case ModelSaarikaV25:
		return mode == speechtotext.ModeVerbatim, false
	}
	return false, false
}

// path returns the streaming endpoint path for model. Translate-only models
// live under their own endpoint.
func (m Model) path() string {
	if m == ModelSaarasV25 {
		return "/speech-to-text-translate/ws"
	}
	return "/speech-to-text/ws"
}
