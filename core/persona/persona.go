// Package persona resolves the tutor persona of a practice session from the
// participant attributes sent by the client.
package persona

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	AttributeLanguage         = "language"
	AttributeScenario         = "scenario"
	AttributeVoice            = "voice"
	AttributeEndpointingDelay = "endpointing_delay"
)

const (
	DefaultLanguage         = "ml-IN"
	DefaultScenario         = "free"
	DefaultVoice            = "kavya"
	DefaultEndpointingDelay = 70 * time.Millisecond

	// MaxEndpointingDelay bounds how long the session may wait after a final
	// transcript before the agent takes the floor.
	MaxEndpointingDelay = 5 * time.Second
)

var (
	ErrUnsupportedLanguage     = errors.New("unsupported target language")
	ErrUnsupportedScenario     = errors.New("unsupported scenario")
	ErrUnsupportedVoice        = errors.New("unsupported voice")
	ErrInvalidEndpointingDelay = errors.New("invalid endpointing delay")
)

type Language struct {
	ID         string
	Name       string
	NativeName string
}

type Scenario struct {
	ID          string
	Name        string
	Description string
}

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

type Voice struct {
	ID     string
	Gender Gender
}

var Languages = []Language{
	{ID: "ml-IN", Name: "malayalam", NativeName: "മലയാളം"},
	{ID: "kn-IN", Name: "kannada", NativeName: "ಕನ್ನಡ"},
	{ID: "hi-IN", Name: "hindi", NativeName: "हिन्दी"},
	{ID: "ta-IN", Name: "tamil", NativeName: "தமிழ்"},
	{ID: "te-IN", Name: "telugu", NativeName: "తెలుగు"},
}

var Scenarios = []Scenario{
	{ID: "basics", Name: "basics", Description: "greetings, thank you, please, numbers"},
	{ID: "free", Name: "free conversation", Description: "open-ended practice"},
	{ID: "restaurant", Name: "at a restaurant", Description: "ordering food, asking for the menu"},
	{ID: "directions", Name: "asking for directions", Description: "getting around a city"},
	{ID: "shopping", Name: "shopping at a market", Description: "bargaining, asking prices"},
	{ID: "introductions", Name: "meeting someone new", Description: "introductions and small talk"},
}

var Voices = []Voice{
	{ID: "kavya", Gender: GenderFemale},
	{ID: "priya", Gender: GenderFemale},
	{ID: "rohan", Gender: GenderMale},
	{ID: "aditya", Gender: GenderMale},
}

// Config is the immutable persona of one session.
type Config struct {
	TargetLanguage   string        `yaml:"language" json:"language"`
	Scenario         string        `yaml:"scenario" json:"scenario"`
	VoiceID          string        `yaml:"voice" json:"voice"`
	EndpointingDelay time.Duration `yaml:"endpointing_delay" json:"endpointing_delay"`
}

func Default() Config {
	return Config{
		TargetLanguage:   DefaultLanguage,
		Scenario:         DefaultScenario,
		VoiceID:          DefaultVoice,
		EndpointingDelay: DefaultEndpointingDelay,
	}
}

// Fallback describes an attribute that was missing or unknown and was
// replaced by its default during [Resolve].
type Fallback struct {
	Attribute string
	Given     string
	Used      string
}

// Resolve builds a Config from participant attributes. Missing or unknown
// values fall back to the defaults; every fallback is reported so callers can
// log it. The result always passes [Config.Validate].
func Resolve(attributes map[string]string) (Config, []Fallback) {
	config := Default()
	var fallbacks []Fallback

	pick := func(attribute, fallback string, known func(string) bool) string {
		given, ok := attributes[attribute]
		given = strings.TrimSpace(given)
		if ok && known(given) {
			return given
		}
		fallbacks = append(fallbacks, Fallback{Attribute: attribute, Given: given, Used: fallback})
		return fallback
	}

	config.TargetLanguage = pick(AttributeLanguage, DefaultLanguage, func(id string) bool { _, ok := LanguageByID(id); return ok })
	config.Scenario = pick(AttributeScenario, DefaultScenario, func(id string) bool { _, ok := ScenarioByID(id); return ok })
	config.VoiceID = pick(AttributeVoice, DefaultVoice, func(id string) bool { _, ok := VoiceByID(id); return ok })

	if given, ok := attributes[AttributeEndpointingDelay]; ok {
		if delay, err := parseDelay(given); err == nil && validDelay(delay) {
			config.EndpointingDelay = delay
		} else {
			fallbacks = append(fallbacks, Fallback{
				Attribute: AttributeEndpointingDelay,
				Given:     given,
				Used:      DefaultEndpointingDelay.String(),
			})
		}
	}

	return config, fallbacks
}

// Validate reports the first value the session cannot run with.
func (c Config) Validate() error {
	if _, ok := LanguageByID(c.TargetLanguage); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, c.TargetLanguage)
	}
	if _, ok := ScenarioByID(c.Scenario); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedScenario, c.Scenario)
	}
	if _, ok := VoiceByID(c.VoiceID); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedVoice, c.VoiceID)
	}
	if !validDelay(c.EndpointingDelay) {
		return fmt.Errorf("%w: %s", ErrInvalidEndpointingDelay, c.EndpointingDelay)
	}
	return nil
}

func (c Config) Language() Language {
	language, _ := LanguageByID(c.TargetLanguage)
	return language
}

func LanguageByID(id string) (Language, bool) {
	i := slices.IndexFunc(Languages, func(l Language) bool { return l.ID == id })
	if i < 0 {
		return Language{}, false
	}
	return Languages[i], true
}

func ScenarioByID(id string) (Scenario, bool) {
	i := slices.IndexFunc(Scenarios, func(s Scenario) bool { return s.ID == id })
	if i < 0 {
		return Scenario{}, false
	}
	return Scenarios[i], true
}

func VoiceByID(id string) (Voice, bool) {
	i := slices.IndexFunc(Voices, func(v Voice) bool { return v.ID == id })
	if i < 0 {
		return Voice{}, false
	}
	return Voices[i], true
}

// parseDelay accepts Go durations ("150ms") and bare seconds ("0.07").
func parseDelay(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if delay, err := time.ParseDuration(value); err == nil {
		return delay, nil
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse endpointing delay %q: %w", value, err)
	}
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

func validDelay(delay time.Duration) bool {
	return delay >= 0 && delay <= MaxEndpointingDelay
}
