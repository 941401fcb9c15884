package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koscakluka/ema-tota/core/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	path := writeFile(t, "tota.yaml", `
persona:
  language: ta-IN
  scenario: restaurant
  endpointing_delay: 150ms
generator:
  provider: groq
  model: llama-3.3-70b-versatile
session:
  greeting: true
  interrupted_responses: keep_truncated
observability:
  metrics_address: ":9464"
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ta-IN", config.Persona.Language)
	assert.Equal(t, GeneratorGroq, config.Generator.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", config.Generator.Model)
	assert.Equal(t, RecognizerSarvam, config.Recognizer.Provider)
	assert.True(t, config.Session.Greeting)
	assert.Equal(t, InterruptedKeepTruncated, config.Session.InterruptedResponses)
	assert.Equal(t, 16000, config.Audio.SampleRate)
	assert.Equal(t, ":9464", config.Observability.MetricsAddress)
	assert.Equal(t, "info", config.Observability.LogLevel)
}

func TestLoadUsesEnvironmentPath(t *testing.T) {
	path := writeFile(t, "override.yaml", "recognizer:\n  provider: deepgram\n")
	t.Setenv(PathEnv, path)

	config, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, RecognizerDeepgram, config.Recognizer.Provider)
}

func TestLoadWithoutDefaultFileReturnsDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Chdir(t.TempDir())

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	t.Setenv(PathEnv, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownProviders(t *testing.T) {
	t.Setenv(PathEnv, "")
	path := writeFile(t, "tota.yaml", "recognizer:\n  provider: whisper\ngenerator:\n  provider: openai\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "recognizer.provider")
	assert.Contains(t, err.Error(), "generator.provider")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Setenv(PathEnv, "")
	path := writeFile(t, "tota.yaml", "persona: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestResolvePersonaFallsBackLeniently(t *testing.T) {
	config := Default()
	config.Persona = Persona{Language: "kn-IN", Voice: "nobody", EndpointingDelay: "200ms"}

	resolved, fallbacks := config.ResolvePersona()

	assert.Equal(t, "kn-IN", resolved.TargetLanguage)
	assert.Equal(t, persona.DefaultVoice, resolved.VoiceID)
	assert.Equal(t, 200*time.Millisecond, resolved.EndpointingDelay)
	assert.NotEmpty(t, fallbacks)
	require.NoError(t, resolved.Validate())
}

func TestLoadEnvIgnoresMissingFilesAndKeepsExistingValues(t *testing.T) {
	t.Setenv("TOTA_TEST_KEY", "from-shell")
	path := writeFile(t, ".env", "TOTA_TEST_KEY=from-file\nTOTA_TEST_OTHER=loaded\n")
	t.Cleanup(func() { _ = os.Unsetenv("TOTA_TEST_OTHER") })

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env.local"), path))

	assert.Equal(t, "from-shell", os.Getenv("TOTA_TEST_KEY"))
	assert.Equal(t, "loaded", os.Getenv("TOTA_TEST_OTHER"))
}

func TestSchemaDescribesSections(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var document map[string]any
	require.NoError(t, json.Unmarshal(data, &document))

	properties, ok := document["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties")
	for _, section := range []string{"persona", "recognizer", "generator", "synthesizer", "session", "audio", "observability"} {
		assert.Contains(t, properties, section)
	}
	assert.Contains(t, string(data), `"keep_truncated"`)
}
