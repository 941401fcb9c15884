package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestration "github.com/koscakluka/ema-tota/core"
	"github.com/koscakluka/ema-tota/core/audio/miniaudio"
	"github.com/koscakluka/ema-tota/core/llms"
	"github.com/koscakluka/ema-tota/core/llms/gemini"
	"github.com/koscakluka/ema-tota/core/llms/groq"
	"github.com/koscakluka/ema-tota/core/observers"
	"github.com/koscakluka/ema-tota/core/speechtotext/deepgram"
	stt "github.com/koscakluka/ema-tota/core/speechtotext/sarvam"
	tts "github.com/koscakluka/ema-tota/core/texttospeech/sarvam"
	"github.com/koscakluka/ema-tota/internal/config"
	"github.com/koscakluka/ema-tota/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type runFlags struct {
	configPath       string
	language         string
	scenario         string
	voice            string
	endpointingDelay string
	greeting         bool
	partials         bool
	stateChanges     bool
	metricsAddress   string
}

var flags runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a practice session on the local microphone and speaker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSession(ctx, cmd, flags)
	},
}

func init() {
	runCmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "config file (default tota.yaml, or $TOTA_CONFIG)")
	runCmd.Flags().StringVar(&flags.language, "language", "", "target language, e.g. ml-IN")
	runCmd.Flags().StringVar(&flags.scenario, "scenario", "", "practice scenario, e.g. restaurant")
	runCmd.Flags().StringVar(&flags.voice, "voice", "", "tutor voice")
	runCmd.Flags().StringVar(&flags.endpointingDelay, "endpointing-delay", "", "silence before the tutor answers, e.g. 70ms")
	runCmd.Flags().BoolVar(&flags.greeting, "greeting", false, "let the tutor open the session")
	runCmd.Flags().BoolVar(&flags.partials, "partials", false, "print partial transcripts")
	runCmd.Flags().BoolVar(&flags.stateChanges, "states", false, "print turn state changes")
	runCmd.Flags().StringVar(&flags.metricsAddress, "metrics-address", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(runCmd)
}

// applyFlags overrides the loaded config with the flags the user set.
func applyFlags(cfg *config.Config, cmd *cobra.Command, f runFlags) {
	changed := cmd.Flags().Changed
	if changed("language") {
		cfg.Persona.Language = f.language
	}
	if changed("scenario") {
		cfg.Persona.Scenario = f.scenario
	}
	if changed("voice") {
		cfg.Persona.Voice = f.voice
	}
	if changed("endpointing-delay") {
		cfg.Persona.EndpointingDelay = f.endpointingDelay
	}
	if changed("greeting") {
		cfg.Session.Greeting = f.greeting
	}
	if changed("metrics-address") {
		cfg.Observability.MetricsAddress = f.metricsAddress
	}
}

func newLogger(out io.Writer, level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel}))
}

func runSession(ctx context.Context, cmd *cobra.Command, f runFlags) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, cmd, f)

	logger := newLogger(cmd.ErrOrStderr(), cfg.Observability.LogLevel)
	slog.SetDefault(logger)

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Observability.TelemetryEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	personaConfig, fallbacks := cfg.ResolvePersona()
	for _, fallback := range fallbacks {
		if fallback.Given != "" {
			logger.Warn("persona attribute not supported, using default",
				"attribute", fallback.Attribute, "given", fallback.Given, "used", fallback.Used)
		}
	}

	options, err := sessionOptions(ctx, cfg)
	if err != nil {
		return err
	}

	device, err := miniaudio.NewClient(miniaudio.WithSampleRate(cfg.Audio.SampleRate))
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	metrics := observers.NewMetrics()
	consoleOptions := []observers.ConsoleOption{}
	if f.partials {
		consoleOptions = append(consoleOptions, observers.WithPartials())
	}
	if f.stateChanges {
		consoleOptions = append(consoleOptions, observers.WithStateChanges())
	}
	sessionObservers := []orchestration.Observer{observers.NewConsole(cmd.OutOrStdout(), consoleOptions...), metrics}
	if logger.Enabled(ctx, slog.LevelDebug) {
		sessionObservers = append(sessionObservers, observers.NewLog(logger))
	}

	options = append(options,
		orchestration.WithPersona(personaConfig),
		orchestration.WithAudioInput(device),
		orchestration.WithAudioOutput(device),
		orchestration.WithObserver(sessionObservers...),
	)
	orchestrator := orchestration.NewOrchestrator(options...)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := orchestrator.Orchestrate(groupCtx); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		<-groupCtx.Done()
		orchestrator.Close()
		return nil
	})
	if address := cfg.Observability.MetricsAddress; address != "" {
		group.Go(func() error { return serveMetrics(groupCtx, address, metrics.Handler()) })
	}
	return group.Wait()
}

// sessionOptions builds the provider clients selected by cfg.
func sessionOptions(ctx context.Context, cfg config.Config) ([]orchestration.OrchestratorOption, error) {
	recognizer, err := newRecognizer(cfg.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech recognizer: %w", err)
	}
	generator, err := newGenerator(ctx, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("failed to create response generator: %w", err)
	}

	synthesizerOptions := []tts.ClientOption{}
	if cfg.Synthesizer.Model != "" {
		synthesizerOptions = append(synthesizerOptions, tts.WithModel(cfg.Synthesizer.Model))
	}
	if cfg.Synthesizer.URL != "" {
		synthesizerOptions = append(synthesizerOptions, tts.WithBaseURL(cfg.Synthesizer.URL))
	}
	synthesizer, err := tts.NewTextToSpeechClient("", synthesizerOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}

	options := []orchestration.OrchestratorOption{
		orchestration.WithSpeechToTextClient(recognizer),
		orchestration.WithStreamingLLM(generator),
		orchestration.WithTextToSpeechClient(synthesizer),
		orchestration.WithInterruptedResponsePolicy(orchestration.InterruptedResponsePolicy(cfg.Session.InterruptedResponses)),
	}
	if cfg.Session.Greeting {
		options = append(options, orchestration.WithGreeting())
	}
	return options, nil
}

func newRecognizer(cfg config.Recognizer) (orchestration.SpeechToText, error) {
	switch cfg.Provider {
	case config.RecognizerDeepgram:
		var opts []deepgram.ClientOption
		if cfg.URL != "" {
			opts = append(opts, deepgram.WithListenURL(cfg.URL))
		}
		return deepgram.NewTranscriptionClient("", opts...)
	case config.RecognizerSarvam, "":
		var opts []stt.ClientOption
		if cfg.Model != "" {
			opts = append(opts, stt.WithModel(stt.Model(cfg.Model)))
		}
		if cfg.URL != "" {
			opts = append(opts, stt.WithBaseURL(cfg.URL))
		}
		return stt.NewTranscriptionClient("", opts...)
	default:
		return nil, fmt.Errorf("%w: unknown recognizer %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

func newGenerator(ctx context.Context, cfg config.Generator) (llms.Generator, error) {
	switch cfg.Provider {
	case config.GeneratorGroq:
		var opts []groq.ClientOption
		if cfg.Model != "" {
			opts = append(opts, groq.WithModel(cfg.Model))
		}
		if cfg.URL != "" {
			opts = append(opts, groq.WithURL(cfg.URL))
		}
		return groq.NewClient("", opts...)
	case config.GeneratorGemini, "":
		var opts []gemini.ClientOption
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.URL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.URL))
		}
		return gemini.NewClient(ctx, "", opts...)
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

// serveMetrics serves handler on address until ctx is done.
func serveMetrics(ctx context.Context, address string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- server.ListenAndServe() }()

	select {
	case err := <-errs:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		return nil
	}
}
