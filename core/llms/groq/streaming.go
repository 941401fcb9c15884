package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-tota/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PromptWithStream prepares a streamed completion. Nothing is sent until the
// returned stream is ranged over.
func (c *Client) PromptWithStream(_ context.Context, request llms.Request) llms.Stream {
	return &Stream{
		client:   c,
		messages: toMessages(request),
	}
}

type Stream struct {
	client   *Client
	messages []message
}

func (s *Stream) Chunks(ctx context.Context) iter.Seq2[llms.StreamChunk, error] {
	requestToFirstTokenTime := time.Time{}
	setRequestToFirstTokenTime := func(span trace.Span) {
		if requestToFirstTokenTime.IsZero() {
			return
		}
		elapsed := time.Since(requestToFirstTokenTime).Seconds()
		span.SetAttributes(attribute.Float64("response.request_to_first_token_time", elapsed))
		span.AddEvent("received first chunk")
		firstTokenLatency.Record(ctx, elapsed, metricAttributes(s.client.model))
		requestToFirstTokenTime = time.Time{}
	}

	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		requestBodyBytes, err := json.Marshal(requestBody{
			Model:         s.client.model,
			Messages:      s.messages,
			Stream:        true,
			StreamOptions: &streamOptions{IncludeUsage: true},
		})
		if err != nil {
			fail(fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			fail(fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		requestToFirstTokenTime = time.Now()
		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			fail(fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			setRequestToFirstTokenTime(span)
			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				logger.Warn("failed to unmarshal groq chunk", "error", err)
				continue
			}

			var finishReason *string
			if len(responseBody.Choices) > 0 {
				choice := responseBody.Choices[0]
				finishReason = choice.FinishReason
				if choice.Delta.Content != "" {
					if !yield(llms.ContentChunk{Text: choice.Delta.Content, Finish: finishReason}, nil) {
						return
					}
				}
				if choice.Delta.Reasoning != "" {
					if !yield(reasoningChunk{reasoning: choice.Delta.Reasoning, finishReason: finishReason}, nil) {
						return
					}
				}
			}

			if usage := responseBody.Usage; usage != nil {
				span.SetAttributes(
					attribute.Int("usage.input", usage.PromptTokens),
					attribute.Int("usage.output", usage.CompletionTokens),
					attribute.Int("usage.total", usage.TotalTokens),
					attribute.Float64("usage.queue_time", usage.QueueTime),
					attribute.Float64("usage.total_time", usage.TotalTime),
				)
				if !yield(llms.UsageChunk{Finish: finishReason, Stats: llms.Usage{
					InputTokens:          usage.PromptTokens,
					OutputTokens:         usage.CompletionTokens,
					TotalTokens:          usage.TotalTokens,
					QueueTime:            usage.QueueTime,
					InputProcessingTime:  usage.PromptTime,
					OutputProcessingTime: usage.CompletionTime,
					TotalTime:            usage.TotalTime,
				}}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			fail(fmt.Errorf("error reading streamed response: %w", err))
		}
	}
}

type reasoningChunk struct {
	finishReason *string
	reasoning    string
}

func (c reasoningChunk) FinishReason() *string { return c.finishReason }
func (c reasoningChunk) Reasoning() string     { return c.reasoning }
