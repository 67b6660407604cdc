package stream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westbrookdaniel/chat/pkg/models"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw, err := NewWriter(w)
		require.NoError(t, err)
		require.NoError(t, sw.Send(TextDelta("Hel")))
		require.NoError(t, sw.Send(TextDelta("lo")))
		require.NoError(t, sw.Send(ReasoningDelta("thinking")))
		require.NoError(t, sw.Send(Finish([]models.Message{{
			ID:    "a0",
			Role:  models.RoleAssistant,
			Parts: []models.Part{{Type: models.PartText, Text: "Hello"}},
		}})))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := NewReader(resp.Body)

	c, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, ChunkTextDelta, c.Type)
	assert.Equal(t, "Hel", c.Value)
	assert.False(t, c.Terminal())

	c, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "lo", c.Value)

	c, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, ChunkReasoningDelta, c.Type)

	c, err = rd.Next()
	require.NoError(t, err)
	require.Equal(t, ChunkFinish, c.Type)
	assert.True(t, c.Terminal())
	require.Len(t, c.ResponseMessages, 1)
	assert.Equal(t, "a0", c.ResponseMessages[0].ID)

	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderSkipsNonDataLines(t *testing.T) {
	body := ": comment\n\ndata: {\"type\":\"text-delta\",\"value\":\"hi\"}\n\n"
	rd := NewReader(strings.NewReader(body))
	c, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Value)
	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderPassesUnknownChunkTypes(t *testing.T) {
	body := "data: {\"type\":\"tool-call\",\"value\":\"x\",\"extra\":true}\n\n"
	rd := NewReader(strings.NewReader(body))
	c, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, ChunkType("tool-call"), c.Type)
	assert.False(t, c.Terminal())
}

func TestErrorChunk(t *testing.T) {
	c := Errorf("generation stopped")
	assert.True(t, c.Terminal())
	assert.Equal(t, "generation stopped", c.Message)
}
