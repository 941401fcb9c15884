package observers

import (
	"context"
	"log/slog"

	"github.com/koscakluka/ema-tota/core/events"
)

// Log writes session events to a structured logger. Speech frames and
// response segments are logged at debug level, everything else at info and
// faults at warn.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) OnEvent(event events.Event) error {
	ctx := context.Background()
	kind := slog.String("event", string(event.Kind()))

	switch e := event.(type) {
	case events.SessionStarted:
		l.logger.InfoContext(ctx, "session started", kind,
			slog.String("language", e.Persona.TargetLanguage),
			slog.String("scenario", e.Persona.Scenario),
			slog.String("voice", e.Persona.VoiceID),
			slog.Duration("endpointing_delay", e.Persona.EndpointingDelay))
	case events.Utterance:
		l.logger.InfoContext(ctx, "utterance", kind,
			slog.String("utterance", e.UtteranceID),
			slog.Bool("final", e.IsFinal),
			slog.String("text", e.Text))
	case events.TurnStarted:
		l.logger.InfoContext(ctx, "turn started", kind,
			slog.String("turn", e.Turn.ID.String()),
			slog.String("owner", string(e.Turn.Owner)))
	case events.TurnStateChanged:
		l.logger.InfoContext(ctx, "state changed", kind,
			slog.String("turn", e.TurnID.String()),
			slog.String("from", string(e.From)),
			slog.String("to", string(e.To)))
	case events.TurnEnded:
		l.logger.InfoContext(ctx, "turn ended", kind,
			slog.String("turn", e.Turn.ID.String()),
			slog.String("owner", string(e.Turn.Owner)),
			slog.String("outcome", string(e.Turn.Outcome)))
	case events.EndpointReached:
		l.logger.InfoContext(ctx, "endpoint reached", kind,
			slog.String("turn", e.TurnID.String()),
			slog.Duration("silence", e.Silence))
	case events.ConversationItemAdded:
		l.logger.InfoContext(ctx, "conversation item", kind,
			slog.String("role", string(e.Item.Role)),
			slog.Bool("truncated", e.Item.Truncated),
			slog.String("text", e.Item.Text))
	case events.AssistantResponseSegment:
		l.logger.DebugContext(ctx, "response segment", kind, slog.String("segment", e.Segment))
	case events.AssistantSpeechFrame:
		l.logger.DebugContext(ctx, "speech frame", kind, slog.Int("bytes", len(e.Audio)))
	case events.StageFault:
		l.logger.WarnContext(ctx, "stage fault", kind,
			slog.String("stage", string(e.Stage)),
			slog.String("turn", e.TurnID.String()),
			slog.Any("error", e.Err))
	case events.TranscriptFault:
		l.logger.WarnContext(ctx, "transcript fault", kind, slog.Any("error", e.Err))
	default:
		l.logger.InfoContext(ctx, "session event", kind)
	}
	return nil
}
