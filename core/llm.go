package orchestration

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tota/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type llm struct {
	client llms.Generator
}

func (l *llm) set(client llms.Generator) {
	if l == nil {
		return
	}
	l.client = nil
	if !isNilClient(client) {
		l.client = client
	}
}

func (l *llm) isConfigured() bool {
	return l != nil && l.client != nil
}

// responseGeneration streams one agent reply into the machine loop as
// fragment inputs, followed by exactly one generation ended input unless it
// was cancelled first.
type responseGeneration struct {
	turnID uuid.UUID
	fence  *fence

	cancelOnce sync.Once
	cancelCtx  context.CancelFunc
}

// startResponse issues the request and returns at once; fragments arrive
// through fence.
func (l *llm) startResponse(ctx context.Context, request llms.Request, turnID uuid.UUID, fence *fence) *responseGeneration {
	ctx, cancel := context.WithCancel(ctx)
	generation := &responseGeneration{turnID: turnID, fence: fence, cancelCtx: cancel}

	if !l.isConfigured() {
		go generation.fence.emit(generationEndedInput{turnID: turnID})
		return generation
	}

	client := l.client
	go func() {
		defer cancel()
		err := panicSafeNamedWorker("response generation", func(ctx context.Context) error {
			return generation.stream(ctx, client, request)
		})(ctx)
		if ctx.Err() != nil {
			return
		}
		generation.fence.emit(generationEndedInput{turnID: turnID, err: err})
	}()
	return generation
}

func (g *responseGeneration) stream(ctx context.Context, client llms.Generator, request llms.Request) error {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.id", g.turnID.String()),
		attribute.Int("request.history", len(request.History)),
	)

	fragments := 0
	for chunk, err := range client.PromptWithStream(ctx, request).Chunks(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		content, ok := chunk.(llms.StreamContentChunk)
		if !ok || content.Content() == "" {
			continue
		}
		if !g.fence.emit(fragmentInput{turnID: g.turnID, text: content.Content()}) {
			span.AddEvent("cancelled")
			return nil
		}
		fragments++
	}
	span.SetAttributes(attribute.Int("response.fragments", fragments))
	return nil
}

// Cancel stops the reply. No input of this generation reaches the loop after
// Cancel returns. Cancelling a finished generation is a no-op.
func (g *responseGeneration) Cancel() {
	if g == nil {
		return
	}
	g.cancelOnce.Do(func() {
		g.fence.cancel()
		g.cancelCtx()
	})
}
