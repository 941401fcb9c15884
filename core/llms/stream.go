package llms

import (
	"context"
	"iter"
)

type Stream interface {
	Chunks(context.Context) iter.Seq2[StreamChunk, error]
}

type StreamChunk interface {
	FinishReason() *string
}

type StreamReasoningChunk interface {
	StreamChunk
	Reasoning() string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int

	// Times are in seconds and might be just an approximation.
	QueueTime            float64
	InputProcessingTime  float64
	OutputProcessingTime float64
	TotalTime            float64
}

// ContentChunk is a plain text fragment, shared by providers that have no
// richer chunk type of their own.
type ContentChunk struct {
	Text   string
	Finish *string
}

func (c ContentChunk) FinishReason() *string { return c.Finish }
func (c ContentChunk) Content() string       { return c.Text }

// UsageChunk reports token usage, usually once at the end of the stream.
type UsageChunk struct {
	Stats  Usage
	Finish *string
}

func (c UsageChunk) FinishReason() *string { return c.Finish }
func (c UsageChunk) Usage() Usage          { return c.Stats }
