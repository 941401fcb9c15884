package llms

import (
	"context"

	"github.com/koscakluka/ema-tota/core/conversations"
)

// Request is everything a generator needs to produce the next agent reply.
type Request struct {
	// Instructions is the system prompt, usually the rendered persona.
	Instructions string
	// History is the committed conversation in order, oldest first.
	History []conversations.Item
	// Directive is an extra one-off instruction for this reply only, for
	// example the session greeting. It is never part of the history.
	Directive string
}

// Generator starts a streamed reply for a request. The request is sent when
// the returned stream is first ranged over.
type Generator interface {
	PromptWithStream(ctx context.Context, request Request) Stream
}

// Text drains stream and returns the concatenated content.
func Text(ctx context.Context, stream Stream) (string, error) {
	var text string
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return text, err
		}
		if content, ok := chunk.(StreamContentChunk); ok {
			text += content.Content()
		}
	}
	return text, nil
}
