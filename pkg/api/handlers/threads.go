package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/westbrookdaniel/chat/pkg/auth"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/store"
	"github.com/westbrookdaniel/chat/pkg/utils"
	"github.com/westbrookdaniel/chat/pkg/validation"
)

// RegisterThreads registers all thread-related HTTP routes to the provided router.
func RegisterThreads(r *mux.Router) {
	r.HandleFunc("/threads", createThread).Methods(http.MethodPost)
	r.HandleFunc("/threads", listThreads).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}", getThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}", renameThread).Methods(http.MethodPatch)
	r.HandleFunc("/threads/{id}", deleteThread).Methods(http.MethodDelete)
}

type createThreadRequest struct {
	InitialMessages []models.Message `json:"initial_messages"`
	Options         models.Options   `json:"options"`
}

// createThread handles POST /v1/threads. The owner comes from the
// verified signature, never the body; the title always starts as the
// sentinel so the first completed turn can synthesize a real one.
func createThread(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateCreateThread(owner, req.InitialMessages); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC().UnixNano()
	t := models.Thread{
		ID:        utils.GenThreadID(),
		Title:     models.SentinelTitle,
		Owner:     owner,
		Options:   req.Options,
		Messages:  req.InitialMessages,
		CreatedTS: now,
		UpdatedTS: now,
	}
	if t.Messages == nil {
		t.Messages = []models.Message{}
	}
	if err := store.SaveThread(t); err != nil {
		logger.Error("thread_create_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logger.Info("thread_created", "thread", t.ID, "owner", owner, "messages", len(t.Messages))
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// listThreads handles GET /v1/threads, scoped to the verified owner.
func listThreads(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	threads, err := store.ListThreads(owner)
	if err != nil {
		logger.Error("thread_list_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"threads": threads})
}

// getThread handles GET /v1/threads/{id}.
func getThread(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	id := mux.Vars(r)["id"]
	t, err := store.GetThread(owner, id)
	if err != nil {
		writeThreadErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// renameThread handles PATCH /v1/threads/{id}. Last write wins; once a
// non-sentinel title exists the synthesizer never fights it.
func renameThread(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	id := mux.Vars(r)["id"]
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := store.SetTitle(owner, id, body.Title)
	if err != nil {
		writeThreadErr(w, err)
		return
	}
	logger.Info("thread_renamed", "thread", id)
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// deleteThread handles DELETE /v1/threads/{id} as a soft delete.
func deleteThread(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	id := mux.Vars(r)["id"]
	if err := store.MarkDeleted(owner, id); err != nil {
		writeThreadErr(w, err)
		return
	}
	logger.Info("thread_deleted", "thread", id)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeThreadErr maps store errors onto the API error contract. Owner
// mismatches surface as not-found, never forbidden.
func writeThreadErr(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.As(err, &verr):
		utils.JSONError(w, http.StatusBadRequest, verr.Error())
	default:
		logger.Error("thread_op_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}
