// Package api exposes the HTTP surface: thread CRUD plus the streamed
// chat turn endpoint.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/westbrookdaniel/chat/pkg/api/handlers"
	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/provider"
)

// Handler returns the /v1 API router.
func Handler(cfg *config.Config, factory *provider.Factory) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterThreads(v1)
	handlers.RegisterChat(v1, handlers.ChatConfig{
		Factory:       factory,
		StreamTimeout: cfg.StreamTimeout(),
		MaxBodyBytes:  cfg.Uploads.MaxFileSize.Int64(),
	})
	return r
}
