// Package config loads the tota-agent configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-tota/core/persona"
	"gopkg.in/yaml.v3"
)

const (
	// PathEnv overrides the path passed to [Load].
	PathEnv = "TOTA_CONFIG"

	DefaultPath = "tota.yaml"
)

const (
	RecognizerSarvam   = "sarvam"
	RecognizerDeepgram = "deepgram"

	GeneratorGemini = "gemini"
	GeneratorGroq   = "groq"

	InterruptedDiscard       = "discard"
	InterruptedKeepTruncated = "keep_truncated"
)

var ErrInvalidConfig = errors.New("invalid config")

// Persona holds participant attributes as a client would send them. They are
// resolved leniently with [persona.Resolve].
type Persona struct {
	Language         string `yaml:"language,omitempty" jsonschema:"enum=ml-IN,enum=kn-IN,enum=hi-IN,enum=ta-IN,enum=te-IN,description=Target language of the tutor"`
	Scenario         string `yaml:"scenario,omitempty" jsonschema:"enum=basics,enum=free,enum=restaurant,enum=directions,enum=shopping,enum=introductions"`
	Voice            string `yaml:"voice,omitempty" jsonschema:"enum=kavya,enum=priya,enum=rohan,enum=aditya"`
	EndpointingDelay string `yaml:"endpointing_delay,omitempty" jsonschema:"description=Silence after the last final transcript before the agent answers (e.g. 70ms or 0.07)"`
}

type Recognizer struct {
	Provider string `yaml:"provider,omitempty" jsonschema:"enum=sarvam,enum=deepgram,default=sarvam"`
	Model    string `yaml:"model,omitempty"`
	URL      string `yaml:"url,omitempty"`
}

type Generator struct {
	Provider string `yaml:"provider,omitempty" jsonschema:"enum=gemini,enum=groq,default=gemini"`
	Model    string `yaml:"model,omitempty"`
	URL      string `yaml:"url,omitempty"`
}

type Synthesizer struct {
	Model string `yaml:"model,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

type Session struct {
	Greeting             bool   `yaml:"greeting,omitempty" jsonschema:"description=Agent opens the session with a greeting"`
	InterruptedResponses string `yaml:"interrupted_responses,omitempty" jsonschema:"enum=discard,enum=keep_truncated,default=discard"`
}

type Audio struct {
	SampleRate int `yaml:"sample_rate,omitempty" jsonschema:"enum=8000,enum=16000,enum=24000,enum=48000,default=16000"`
}

type Observability struct {
	LogLevel          string `yaml:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	MetricsAddress    string `yaml:"metrics_address,omitempty" jsonschema:"description=Listen address of the Prometheus endpoint (disabled when empty)"`
	TelemetryEndpoint string `yaml:"telemetry_endpoint,omitempty" jsonschema:"description=OTLP/HTTP traces endpoint URL (disabled when empty)"`
	ServiceName       string `yaml:"service_name,omitempty"`
}

type Config struct {
	Persona       Persona       `yaml:"persona"`
	Recognizer    Recognizer    `yaml:"recognizer"`
	Generator     Generator     `yaml:"generator"`
	Synthesizer   Synthesizer   `yaml:"synthesizer"`
	Session       Session       `yaml:"session"`
	Audio         Audio         `yaml:"audio"`
	Observability Observability `yaml:"observability"`
}

func Default() Config {
	return Config{
		Recognizer:    Recognizer{Provider: RecognizerSarvam},
		Generator:     Generator{Provider: GeneratorGemini},
		Session:       Session{InterruptedResponses: InterruptedDiscard},
		Audio:         Audio{SampleRate: 16000},
		Observability: Observability{LogLevel: "info", ServiceName: "tota-agent"},
	}
}

// LoadEnv loads .env.local and .env into the process environment. Variables
// already set are not overridden and missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env.local", ".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the config file at path, or at $TOTA_CONFIG when set. A missing
// file at the default path yields the defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if env := os.Getenv(PathEnv); env != "" {
		path, explicit = env, true
	}
	if path == "" {
		path = DefaultPath
	}

	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if value != "" && !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%w: %s must be one of %s, got %q",
				ErrInvalidConfig, field, strings.Join(allowed, ", "), value))
		}
	}
	check("recognizer.provider", c.Recognizer.Provider, RecognizerSarvam, RecognizerDeepgram)
	check("generator.provider", c.Generator.Provider, GeneratorGemini, GeneratorGroq)
	check("session.interrupted_responses", c.Session.InterruptedResponses, InterruptedDiscard, InterruptedKeepTruncated)
	check("observability.log_level", c.Observability.LogLevel, "debug", "info", "warn", "error")
	if c.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("%w: audio.sample_rate must be positive, got %d", ErrInvalidConfig, c.Audio.SampleRate))
	}
	return errors.Join(errs...)
}

// Attributes returns the persona section as participant attributes, leaving
// out unset values.
func (p Persona) Attributes() map[string]string {
	attributes := map[string]string{}
	for key, value := range map[string]string{
		persona.AttributeLanguage:         p.Language,
		persona.AttributeScenario:         p.Scenario,
		persona.AttributeVoice:            p.Voice,
		persona.AttributeEndpointingDelay: p.EndpointingDelay,
	} {
		if value != "" {
			attributes[key] = value
		}
	}
	return attributes
}

// ResolvePersona resolves the persona section with [persona.Resolve].
func (c Config) ResolvePersona() (persona.Config, []persona.Fallback) {
	return persona.Resolve(c.Persona.Attributes())
}

// Schema returns the JSON Schema of the config file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "tota-agent configuration"
	schema.Description = "Persona, providers and observability of a tota-agent session"
	return schema
}
