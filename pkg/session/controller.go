package session

import (
	"context"
	"io"
	"sync"

	"github.com/westbrookdaniel/chat/pkg/attach"
	"github.com/westbrookdaniel/chat/pkg/codec"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/stream"
)

// State is the controller's stream state.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StateStreaming State = "streaming"
	StateError     State = "error"
)

// Hooks are the controller's outbound edges into the view layer. All are
// optional and called without the controller lock held.
type Hooks struct {
	// OnNavigate fires after a brand-new thread has been persisted and
	// adopted, so the view can move to its identity.
	OnNavigate func(threadID string)
	// OnChange fires whenever state or messages changed.
	OnChange func()
	// OnThreadRefresh delivers the refetched server record after a
	// completed turn (the title may have changed out of band).
	OnThreadRefresh func(t models.Thread)
}

// Controller owns one thread's conversation state machine: the cached
// message list, the stream state and the single in-flight invocation.
// The server record stays the source of truth; the controller only ever
// reconciles into its local cache.
// maxAttachmentBytes bounds a single packaged file on the client side.
// The server enforces its own limit; this one fails fast before upload.
const maxAttachmentBytes = 16 << 20

type Controller struct {
	client   *Client
	hooks    Hooks
	packager attach.Packager

	mu        sync.Mutex
	threadID  string
	persisted bool
	// creating marks an in-flight create-thread call so duplicate Sends
	// on a brand-new controller collapse into one persisted thread.
	creating bool
	options   models.Options
	committed []models.Message
	// partial is the uncommitted assistant turn assembled from deltas.
	partial *models.Message
	state   State
	errMsg  string
	cancel  context.CancelFunc
	gen     int // invocation generation; stale goroutines compare before mutating
	wg      sync.WaitGroup
}

// NewController builds a controller for an existing thread (cached copy
// adopted) or, with a zero-value thread, for one not yet persisted.
func NewController(client *Client, t models.Thread, hooks Hooks) *Controller {
	c := &Controller{
		client:    client,
		hooks:     hooks,
		packager:  attach.Packager{MaxFileSize: maxAttachmentBytes},
		threadID:  t.ID,
		persisted: t.ID != "",
		options:   t.Options,
		committed: append([]models.Message(nil), t.Messages...),
		state:     StateIdle,
	}
	return c
}

// PackFiles converts user-selected local files into attachments for the
// next Send. Rejected files come back per-file; the rest still pack.
func (c *Controller) PackFiles(files []attach.LocalFile) ([]models.Attachment, []*attach.FileError) {
	return c.packager.Pack(files)
}

// ThreadID returns the adopted thread id ("" while unpersisted).
func (c *Controller) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// StateNow returns the current stream state.
func (c *Controller) StateNow() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the message surfaced by the last failure, if any.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Messages returns the working list: committed history plus any
// uncommitted partial assistant turn.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]models.Message(nil), c.committed...)
	if c.partial != nil {
		out = append(out, *c.partial)
	}
	return out
}

// Send submits a new user turn. For a thread that does not exist
// server-side yet this first performs the create-thread call with a
// bootstrap message, adopts the returned id and navigates; the
// continuation then flows through the same coalescing guard as Mount so
// a remount cannot double-fire.
func (c *Controller) Send(ctx context.Context, text string, attachments []models.Attachment) error {
	c.mu.Lock()
	if !c.persisted {
		if c.creating {
			// a create for this controller is already in flight; this is the
			// same submission arriving twice, not a second conversation
			c.mu.Unlock()
			logger.Debug("create_coalesced")
			return nil
		}
		c.creating = true
		c.state = StateSubmitted
		boot := codec.BuildBootstrapMessage(text, attachments)
		opts := c.options
		c.mu.Unlock()
		c.notify()

		t, err := c.client.CreateThread(ctx, []models.Message{boot}, opts)
		if err != nil {
			c.mu.Lock()
			c.creating = false
			c.mu.Unlock()
			c.fail(err.Error())
			return err
		}
		c.mu.Lock()
		c.creating = false
		c.threadID = t.ID
		c.persisted = true
		c.committed = append([]models.Message(nil), t.Messages...)
		c.state = StateIdle
		c.mu.Unlock()
		logger.Debug("thread_adopted", "thread", t.ID)
		if c.hooks.OnNavigate != nil {
			c.hooks.OnNavigate(t.ID)
		}
		c.Mount(ctx)
		return nil
	}

	msg := codec.BuildUserMessage(text, attachments)
	c.committed = append(c.committed, msg)
	history := append([]models.Message(nil), c.committed...)
	c.mu.Unlock()
	c.notify()
	c.invoke(ctx, history)
	return nil
}

// Mount triggers the automatic continuation for a freshly created
// thread: exactly one message, carrying the bootstrap marker, with
// credentials present. Views may mount the same thread several times in
// quick succession; the guard collapses those into one invocation.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	eligible := c.persisted &&
		len(c.committed) == 1 &&
		c.committed[0].Bootstrap &&
		c.state == StateIdle &&
		c.client.HasCredentials()
	id := c.threadID
	var history []models.Message
	if eligible {
		history = append([]models.Message(nil), c.committed...)
	}
	c.mu.Unlock()

	if !eligible {
		return
	}
	if !continuationGuard.tryAcquire(id) {
		logger.Debug("bootstrap_coalesced", "thread", id)
		return
	}
	c.invoke(ctx, history)
}

// Edit replaces the text of the message at index k, truncates everything
// after it and regenerates from that point. Destructive locally; the
// server record is only overwritten when the new generation completes.
// Ordering is fixed: strip marker, mutate, truncate, invoke.
func (c *Controller) Edit(ctx context.Context, k int, text string) {
	c.mu.Lock()
	if k < 0 || k >= len(c.committed) {
		c.mu.Unlock()
		return
	}
	c.partial = nil
	c.committed = codec.TruncateForEdit(c.committed, k, text)
	history := append([]models.Message(nil), c.committed...)
	c.mu.Unlock()
	c.notify()
	c.invoke(ctx, history)
}

// Retry discards the message at index k and everything after it, then
// regenerates. Used to redo an assistant reply or recover from an error.
func (c *Controller) Retry(ctx context.Context, k int) {
	c.mu.Lock()
	if k < 0 || k >= len(c.committed) {
		c.mu.Unlock()
		return
	}
	c.partial = nil
	c.committed = codec.TruncateForRetry(c.committed, k)
	history := append([]models.Message(nil), c.committed...)
	c.mu.Unlock()
	c.notify()
	c.invoke(ctx, history)
}

// Stop cancels the in-flight stream. Partial assistant content stays in
// the uncommitted view but is never persisted, and nothing retries
// automatically.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.gen++ // orphan the reader goroutine
	if c.partial != nil {
		c.committed = append(c.committed, *c.partial)
		c.partial = nil
	}
	c.state = StateIdle
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.notify()
}

// Teardown cancels any in-flight work and waits for it. Call on
// navigation away.
func (c *Controller) Teardown() {
	c.Stop()
	c.wg.Wait()
}

// invoke starts a model invocation over history, superseding any prior
// one for this thread.
func (c *Controller) invoke(ctx context.Context, history []models.Message) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.state = StateSubmitted
	c.errMsg = ""
	c.partial = nil
	id := c.threadID
	opts := c.options
	c.mu.Unlock()
	c.notify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(runCtx, gen, id, history, opts)
	}()
}

// run consumes one turn stream. It only mutates controller state while
// its generation is still current.
func (c *Controller) run(ctx context.Context, gen int, id string, history []models.Message, opts models.Options) {
	ts, err := c.client.StreamTurn(ctx, id, history, opts)
	if err != nil {
		c.failIfCurrent(gen, err.Error())
		return
	}
	defer func() { _ = ts.Close() }()

	for {
		chunk, err := ts.Next()
		if err != nil {
			if ctx.Err() != nil {
				return // stopped or superseded; Stop already settled state
			}
			msg := "connection lost"
			if err != io.EOF {
				msg = err.Error()
			}
			c.failIfCurrent(gen, msg)
			return
		}

		switch chunk.Type {
		case stream.ChunkTextDelta, stream.ChunkReasoningDelta:
			c.applyDelta(gen, chunk)
		case stream.ChunkFinish:
			c.finish(gen, history, chunk.ResponseMessages)
			return
		case stream.ChunkError:
			c.failIfCurrent(gen, chunk.Message)
			return
		default:
			// unknown chunk types are ignored for forward compatibility
		}
	}
}

// applyDelta folds a streamed delta into the uncommitted assistant turn.
// The first delta moves the state machine from submitted to streaming.
func (c *Controller) applyDelta(gen int, chunk stream.Chunk) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateStreaming
	if c.partial == nil {
		m := codec.BuildUserMessage("", nil)
		m.Role = models.RoleAssistant
		m.Parts = nil
		c.partial = &m
	}
	partType := models.PartText
	if chunk.Type == stream.ChunkReasoningDelta {
		partType = models.PartReasoning
	}
	n := len(c.partial.Parts)
	if n > 0 && c.partial.Parts[n-1].Type == partType {
		c.partial.Parts[n-1].Text += chunk.Value
	} else {
		c.partial.Parts = append(c.partial.Parts, models.Part{Type: partType, Text: chunk.Value})
	}
	c.mu.Unlock()
	c.notify()
}

// finish reconciles the server-confirmed response into the cache and
// refetches the thread record out of band.
func (c *Controller) finish(gen int, history, response []models.Message) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.partial = nil
	c.committed = codec.MergeResponse(history, response)
	c.state = StateIdle
	c.cancel = nil
	id := c.threadID
	c.mu.Unlock()
	c.notify()

	if c.hooks.OnThreadRefresh != nil {
		// the server is the only writer of persisted state; refetch to pick
		// up a concurrently synthesized title
		if t, err := c.client.GetThread(context.Background(), id); err == nil {
			c.hooks.OnThreadRefresh(t)
		} else {
			logger.Warn("thread_refresh_failed", "thread", id, "error", err)
		}
	}
}

func (c *Controller) failIfCurrent(gen int, msg string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	c.errMsg = msg
	c.cancel = nil
	c.mu.Unlock()
	c.notify()
}

// fail records an error outside any invocation (e.g. create-thread).
func (c *Controller) fail(msg string) {
	c.mu.Lock()
	c.state = StateError
	c.errMsg = msg
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange()
	}
}
