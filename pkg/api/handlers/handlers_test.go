package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westbrookdaniel/chat/pkg/api"
	"github.com/westbrookdaniel/chat/pkg/auth"
	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/provider"
	"github.com/westbrookdaniel/chat/pkg/store"
)

const secret = "handler-secret"

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.Security.SigningSecret = secret
	return auth.Middleware(auth.SecConfig{SigningSecret: secret})(
		api.Handler(cfg, provider.NewFactory(cfg.Provider)))
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-User-ID", "alice")
	r.Header.Set("X-User-Signature", auth.Sign(secret, "alice"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func errBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

func TestCreateThreadDefaults(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/threads", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var th models.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.True(t, strings.HasPrefix(th.ID, "th_"))
	assert.Equal(t, models.SentinelTitle, th.Title)
	assert.Equal(t, "alice", th.Owner)
	assert.NotNil(t, th.Messages)
	assert.Empty(t, th.Messages)
}

func TestCreateThreadForcesSentinelTitle(t *testing.T) {
	h := testHandler(t)

	// the body cannot smuggle in a title or an owner
	rec := doJSON(t, h, http.MethodPost, "/v1/threads", `{"title":"sneaky","owner":"bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var th models.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.Equal(t, models.SentinelTitle, th.Title)
	assert.Equal(t, "alice", th.Owner)
}

func TestCreateThreadRejectsBadBody(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/threads", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid json", errBody(t, rec))

	rec = doJSON(t, h, http.MethodPost, "/v1/threads",
		`{"initial_messages":[{"id":"","role":"user","parts":[{"type":"text","text":"x"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/threads",
		`{"initial_messages":[{"id":"u0","role":"wizard","parts":[{"type":"text","text":"x"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errBody(t, rec), "unknown role")
}

func TestListThreadsEmptyShape(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/threads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threads":[]}`, rec.Body.String())
}

func TestGetThreadNotFound(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/v1/threads/th_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", errBody(t, rec))
}

func TestRenameThreadValidation(t *testing.T) {
	h := testHandler(t)

	created := doJSON(t, h, http.MethodPost, "/v1/threads", `{}`)
	var th models.Thread
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &th))

	rec := doJSON(t, h, http.MethodPatch, "/v1/threads/"+th.ID, `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/v1/threads/"+th.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &th))
	assert.Equal(t, "Renamed", th.Title)
}

func TestDeleteThreadThenGone(t *testing.T) {
	h := testHandler(t)

	created := doJSON(t, h, http.MethodPost, "/v1/threads", `{}`)
	var th models.Thread
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &th))

	rec := doJSON(t, h, http.MethodDelete, "/v1/threads/"+th.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/threads/"+th.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/v1/threads/"+th.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatTurnValidation(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/chat", `{"thread_id":"","messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errBody(t, rec), "thread_id")

	rec = doJSON(t, h, http.MethodPost, "/v1/chat",
		`{"thread_id":"th_x","messages":[{"id":"u0","role":"assistant","parts":[{"type":"text","text":"x"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errBody(t, rec), "user turn")

	// a structurally valid turn against a missing thread is 404
	rec = doJSON(t, h, http.MethodPost, "/v1/chat",
		`{"thread_id":"th_x","messages":[{"id":"u0","role":"user","parts":[{"type":"text","text":"x"}]}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
