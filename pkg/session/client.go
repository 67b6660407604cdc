// Package session holds the client half of the thread streaming
// protocol: an HTTP client for the chat API and a per-thread controller
// that owns the conversation state machine.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/stream"
)

// Client talks to the chat server on behalf of one signed user.
type Client struct {
	BaseURL string
	UserID  string
	// Signature is the session-layer HMAC over UserID.
	Signature string
	// ProviderKey, when set, is forwarded as X-Provider-Key.
	ProviderKey string
	// ServerManagedKey marks deployments where the server holds the
	// provider credential, so the client treats credentials as present.
	ServerManagedKey bool

	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// HasCredentials reports whether a model invocation could succeed.
// Auto-continuation never fires without this.
func (c *Client) HasCredentials() bool {
	return c.ProviderKey != "" || c.ServerManagedKey
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.UserID)
	req.Header.Set("X-User-Signature", c.Signature)
	if c.ProviderKey != "" {
		req.Header.Set("X-Provider-Key", c.ProviderKey)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return decodeAPIError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func decodeAPIError(res *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(res.Body).Decode(&e)
	if e.Error == "" {
		e.Error = res.Status
	}
	switch res.StatusCode {
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusUnauthorized:
		if e.Error == models.ErrMissingAPIKey.Error() {
			return models.ErrMissingAPIKey
		}
	}
	return fmt.Errorf("server: %s", e.Error)
}

// CreateThread persists a new thread holding the given initial messages.
func (c *Client) CreateThread(ctx context.Context, initial []models.Message, opts models.Options) (models.Thread, error) {
	var t models.Thread
	err := c.do(ctx, http.MethodPost, "/v1/threads", map[string]interface{}{
		"initial_messages": initial,
		"options":          opts,
	}, &t)
	return t, err
}

// GetThread refetches the server record, picking up server-side writes
// like a synthesized title.
func (c *Client) GetThread(ctx context.Context, id string) (models.Thread, error) {
	var t models.Thread
	err := c.do(ctx, http.MethodGet, "/v1/threads/"+id, nil, &t)
	return t, err
}

// ListThreads returns the caller's live threads.
func (c *Client) ListThreads(ctx context.Context) ([]models.Thread, error) {
	var out struct {
		Threads []models.Thread `json:"threads"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/threads", nil, &out)
	return out.Threads, err
}

// RenameThread overwrites the title permanently.
func (c *Client) RenameThread(ctx context.Context, id, title string) (models.Thread, error) {
	var t models.Thread
	err := c.do(ctx, http.MethodPatch, "/v1/threads/"+id, map[string]string{"title": title}, &t)
	return t, err
}

// DeleteThread soft-deletes a thread.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/threads/"+id, nil, nil)
}

// TurnStream is one in-flight streamed turn.
type TurnStream struct {
	body io.ReadCloser
	rd   *stream.Reader
}

// Next returns the next chunk. io.EOF means the transport closed without
// a terminal chunk (treated as a stream error by the controller).
func (s *TurnStream) Next() (stream.Chunk, error) {
	return s.rd.Next()
}

// Close releases the underlying connection.
func (s *TurnStream) Close() error {
	return s.body.Close()
}

// StreamTurn opens the streamed turn endpoint for the full history
// including the new user turn.
func (c *Client) StreamTurn(ctx context.Context, threadID string, msgs []models.Message, opts models.Options) (*TurnStream, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/chat", map[string]interface{}{
		"thread_id": threadID,
		"messages":  msgs,
		"options":   opts,
	})
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "open turn stream")
	}
	if res.StatusCode != http.StatusOK {
		defer func() { _ = res.Body.Close() }()
		return nil, decodeAPIError(res)
	}
	return &TurnStream{body: res.Body, rd: stream.NewReader(res.Body)}, nil
}
