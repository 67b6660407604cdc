// Package stream defines the wire chunks exchanged during a streamed
// turn and their server-sent-events framing. The server handler writes
// them; the session controller reads them back.
package stream

import (
	"encoding/json"

	"github.com/westbrookdaniel/chat/pkg/models"
)

type ChunkType string

const (
	ChunkTextDelta      ChunkType = "text-delta"
	ChunkReasoningDelta ChunkType = "reasoning-delta"
	// ChunkFinish terminates a successful stream and carries the full
	// response messages for reconciliation.
	ChunkFinish ChunkType = "finish"
	// ChunkError terminates a failed stream with a human-readable message,
	// never a raw internal error.
	ChunkError ChunkType = "error"
)

// Chunk is one ordered unit of streamed output.
type Chunk struct {
	Type  ChunkType `json:"type"`
	Value string    `json:"value,omitempty"`
	// ResponseMessages is set only on finish chunks.
	ResponseMessages []models.Message `json:"response_messages,omitempty"`
	// Message is set only on error chunks.
	Message string `json:"message,omitempty"`
}

// TextDelta builds a text delta chunk.
func TextDelta(v string) Chunk { return Chunk{Type: ChunkTextDelta, Value: v} }

// ReasoningDelta builds a reasoning delta chunk.
func ReasoningDelta(v string) Chunk { return Chunk{Type: ChunkReasoningDelta, Value: v} }

// Finish builds the terminal success chunk.
func Finish(resp []models.Message) Chunk {
	return Chunk{Type: ChunkFinish, ResponseMessages: resp}
}

// Errorf builds the terminal error chunk.
func Errorf(msg string) Chunk { return Chunk{Type: ChunkError, Message: msg} }

// Terminal reports whether the chunk ends the stream.
func (c Chunk) Terminal() bool {
	return c.Type == ChunkFinish || c.Type == ChunkError
}

func (c Chunk) encode() ([]byte, error) {
	return json.Marshal(c)
}

func decodeChunk(b []byte) (Chunk, error) {
	var c Chunk
	err := json.Unmarshal(b, &c)
	return c, err
}
