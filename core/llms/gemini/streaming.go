package gemini

import (
	"context"
	"fmt"
	"iter"

	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// PromptWithStream prepares a streamed reply. Nothing is sent until the
// returned stream is ranged over.
func (c *Client) PromptWithStream(_ context.Context, request llms.Request) llms.Stream {
	return &Stream{client: c, contents: toContents(request.History), config: toConfig(request)}
}

type Stream struct {
	client   *Client
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (s *Stream) Chunks(ctx context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", s.client.model),
			attribute.Int("request.contents", len(s.contents)),
		)

		var usage *genai.GenerateContentResponseUsageMetadata
		for resp, err := range s.client.client.Models.GenerateContentStream(ctx, s.client.model, s.contents, s.config) {
			if err != nil {
				err = fmt.Errorf("failed to stream gemini response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield(nil, err)
				return
			}

			var finishReason *string
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				reason := string(resp.Candidates[0].FinishReason)
				finishReason = &reason
			}
			if resp.UsageMetadata != nil {
				usage = resp.UsageMetadata
			}

			if text := resp.Text(); text != "" {
				if !yield(llms.ContentChunk{Text: text, Finish: finishReason}, nil) {
					return
				}
			}
		}

		if usage == nil {
			return
		}
		span.SetAttributes(
			attribute.Int("usage.input", int(usage.PromptTokenCount)),
			attribute.Int("usage.output", int(usage.CandidatesTokenCount)),
			attribute.Int("usage.total", int(usage.TotalTokenCount)),
		)
		yield(llms.UsageChunk{Stats: llms.Usage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
			TotalTokens:  int(usage.TotalTokenCount),
		}}, nil)
	}
}

func toConfig(request llms.Request) *genai.GenerateContentConfig {
	instructions := request.Instructions
	if request.Directive != "" {
		if instructions != "" {
			instructions += "\n\n"
		}
		instructions += request.Directive
	}
	config := &genai.GenerateContentConfig{}
	if instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(instructions, genai.RoleUser)
	}
	return config
}

// toContents maps the history onto alternating user and model contents.
// Consecutive items of the same role are merged, and a model reply can not
// open the conversation, so a directive-only request gets a neutral opener.
func toContents(history []conversations.Item) []*genai.Content {
	contents := []*genai.Content{}
	for _, item := range history {
		if item.Text == "" {
			continue
		}
		role := genai.RoleUser
		if item.Role == conversations.RoleAgent {
			role = genai.RoleModel
		}
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.NewPartFromText(item.Text))
			continue
		}
		contents = append(contents, genai.NewContentFromText(item.Text, role))
	}
	if len(contents) == 0 || contents[0].Role != string(genai.RoleUser) {
		logger.Debug("conversation does not start with the user, adding an opener")
		contents = append([]*genai.Content{genai.NewContentFromText("(the learner has joined the session)", genai.RoleUser)}, contents...)
	}
	return contents
}
