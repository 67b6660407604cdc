package stream

import (
	"bufio"
	"bytes"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Writer frames chunks as server-sent events over an http response. It
// flushes after every chunk: the first byte reaching the client ahead of
// completion is a protocol requirement, not an optimization.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for SSE output and writes the stream headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes a single chunk event and flushes it.
func (s *Writer) Send(c Chunk) error {
	b, err := c.encode()
	if err != nil {
		return errors.Wrap(err, "encode chunk")
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Reader decodes an SSE chunk stream. Unknown chunk types are returned
// as-is so callers can skip them; unknown fields are ignored.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps a response body.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{sc: sc}
}

var dataPrefix = []byte("data: ")

// Next returns the next chunk, or io.EOF when the stream closed cleanly
// without a terminal chunk.
func (r *Reader) Next() (Chunk, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		c, err := decodeChunk(bytes.TrimPrefix(line, dataPrefix))
		if err != nil {
			return Chunk{}, errors.Wrap(err, "decode chunk")
		}
		return c, nil
	}
	if err := r.sc.Err(); err != nil {
		return Chunk{}, err
	}
	return Chunk{}, io.EOF
}
