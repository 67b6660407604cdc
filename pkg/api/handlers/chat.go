package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/westbrookdaniel/chat/pkg/auth"
	"github.com/westbrookdaniel/chat/pkg/codec"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/provider"
	"github.com/westbrookdaniel/chat/pkg/store"
	"github.com/westbrookdaniel/chat/pkg/stream"
	"github.com/westbrookdaniel/chat/pkg/telemetry"
	"github.com/westbrookdaniel/chat/pkg/titles"
	"github.com/westbrookdaniel/chat/pkg/utils"
	"github.com/westbrookdaniel/chat/pkg/validation"
)

// ChatConfig wires the chat handler's collaborators.
type ChatConfig struct {
	Factory *provider.Factory
	// StreamTimeout is the hard ceiling for one invocation.
	StreamTimeout time.Duration
	// MaxBodyBytes bounds the request body (history plus attachment
	// metadata). Zero falls back to 16MB.
	MaxBodyBytes int64
}

var chatCfg ChatConfig

// RegisterChat registers the streamed turn endpoint.
func RegisterChat(r *mux.Router, cfg ChatConfig) {
	chatCfg = cfg
	r.HandleFunc("/chat", streamTurn).Methods(http.MethodPost)
}

type chatRequest struct {
	ThreadID string           `json:"thread_id"`
	Messages []models.Message `json:"messages"`
	Options  models.Options   `json:"options"`
}

// streamTurn handles POST /v1/chat: it invokes the model over the full
// incoming history and streams deltas back as SSE chunks. Persistence
// happens exactly once, on successful completion; a mid-flight failure
// leaves the previously stored state intact.
func streamTurn(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())

	maxBody := chatCfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateChatTurn(req.ThreadID, req.Messages); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := store.GetThread(owner, req.ThreadID)
	if err != nil {
		writeThreadErr(w, err)
		return
	}

	key, err := chatCfg.Factory.ResolveKey(r)
	if err != nil {
		// missing credential is its own user-visible state, not a generic failure
		utils.JSONError(w, http.StatusUnauthorized, models.ErrMissingAPIKey.Error())
		return
	}

	opts := req.Options
	if opts.Model == "" {
		opts.Model = thread.Options.Model
	}

	// The invocation ceiling also covers title synthesis; the request
	// context cancels everything when the client disconnects.
	ctx, cancel := context.WithTimeout(r.Context(), chatCfg.StreamTimeout)
	defer cancel()

	// Title synthesis runs synchronously before the stream, gated on the
	// sentinel. A failure here is logged, never fatal to the turn.
	if thread.Title == models.SentinelTitle {
		probe := thread
		probe.Messages = req.Messages
		if _, terr := titles.Synthesize(ctx, chatCfg.Factory, key, probe); terr != nil {
			logger.Warn("title_synthesis_failed", "thread", thread.ID, "error", terr)
		}
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	telemetry.StreamsStarted.Inc()
	logger.Info("turn_stream_started", "thread", thread.ID, "history", len(req.Messages), "model", chatCfg.Factory.Model(opts))

	reply, err := chatCfg.Factory.StreamTurn(ctx, key, opts, req.Messages, sw.Send)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "cancelled"
		}
		telemetry.StreamsFinished.WithLabelValues(outcome).Inc()
		logger.Warn("turn_stream_failed", "thread", thread.ID, "outcome", outcome, "error", err)
		// best effort: the client may already be gone
		_ = sw.Send(stream.Errorf(userFacing(err)))
		return
	}

	response := []models.Message{reply}
	merged := codec.MergeResponse(req.Messages, response)
	if _, err := store.SetMessages(owner, thread.ID, merged); err != nil {
		telemetry.StreamsFinished.WithLabelValues("error").Inc()
		logger.Error("turn_persist_failed", "thread", thread.ID, "error", err)
		_ = sw.Send(stream.Errorf("failed to save conversation"))
		return
	}

	telemetry.StreamsFinished.WithLabelValues("finish").Inc()
	logger.Info("turn_stream_finished", "thread", thread.ID, "messages", len(merged))
	_ = sw.Send(stream.Finish(response))
}

// userFacing maps internal errors to messages safe to put on the wire.
func userFacing(err error) string {
	var serr *models.StreamError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	case errors.Is(err, context.Canceled):
		return "generation stopped"
	case errors.As(err, &serr):
		return serr.Msg
	default:
		return "an error occurred"
	}
}
