package provider

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/stream"
	"github.com/westbrookdaniel/chat/pkg/utils"
)

// StreamTurn runs one streaming chat completion. Every delta is handed
// to emit as it arrives; no buffering of the full response. On success
// the assembled assistant message is returned. Context cancellation
// (client disconnect, stop, timeout) tears down the provider stream
// promptly and is returned as ctx.Err().
func (f *Factory) StreamTurn(ctx context.Context, key string, opts models.Options, msgs []models.Message, emit func(stream.Chunk) error) (models.Message, error) {
	req := go_openai.ChatCompletionRequest{
		Model:    f.Model(opts),
		Messages: toProviderMessages(msgs),
		Stream:   true,
	}
	if opts.Thinking {
		req.ReasoningEffort = "medium"
	}

	client := f.client(key)
	s, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return models.Message{}, &models.StreamError{Msg: "model request failed", Err: err}
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn("provider_stream_close_failed", "error", cerr)
		}
	}()

	var text, reasoning string
	chunkCount := 0
	for {
		select {
		case <-ctx.Done():
			logger.Debug("provider_stream_cancelled", "chunks", chunkCount)
			return models.Message{}, ctx.Err()
		default:
		}

		resp, err := s.Recv()
		if errors.Is(err, io.EOF) {
			logger.Debug("provider_stream_complete", "chunks", chunkCount, "text_len", len(text))
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return models.Message{}, ctx.Err()
			}
			logger.Error("provider_stream_recv_failed", "chunks", chunkCount, "error", err)
			return models.Message{}, &models.StreamError{Msg: "model stream failed", Err: err}
		}
		chunkCount++
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.ReasoningContent != "" {
			reasoning += delta.ReasoningContent
			if err := emit(stream.ReasoningDelta(delta.ReasoningContent)); err != nil {
				return models.Message{}, err
			}
		}
		if delta.Content != "" {
			text += delta.Content
			if err := emit(stream.TextDelta(delta.Content)); err != nil {
				return models.Message{}, err
			}
		}
	}

	var parts []models.Part
	if reasoning != "" {
		parts = append(parts, models.Part{Type: models.PartReasoning, Text: reasoning})
	}
	parts = append(parts, models.Part{Type: models.PartText, Text: text})
	return models.Message{
		ID:        utils.GenMessageID(),
		Role:      models.RoleAssistant,
		CreatedTS: time.Now().UTC().UnixNano(),
		Parts:     parts,
	}, nil
}

// Oneshot performs a single non-streaming completion. Used for title
// synthesis.
func (f *Factory) Oneshot(ctx context.Context, key, model, system, prompt string) (string, error) {
	client := f.client(key)
	resp, err := client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model: model,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: system},
			{Role: go_openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// toProviderMessages flattens thread messages into the provider's chat
// shape. Reasoning parts never go back to the model; attachments are
// referenced by name so the model knows they exist.
func toProviderMessages(msgs []models.Message) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content()
		for _, a := range m.Attachments {
			content += "\n[attachment: " + a.Name + " (" + a.ContentType + ")]"
		}
		out = append(out, go_openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: content,
		})
	}
	return out
}
