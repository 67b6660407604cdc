package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/westbrookdaniel/chat/pkg/api"
	"github.com/westbrookdaniel/chat/pkg/auth"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/store"
	"github.com/westbrookdaniel/chat/pkg/telemetry"
)

type httpServer struct {
	srv *http.Server
}

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/", api.Handler(&a.eff.Config, a.factory))
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// BuildHandler assembles the full middleware stack around the API.
// Exported for tests that want the wired handler without a listener.
func (a *App) BuildHandler() http.Handler {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	sec := a.eff.Config.Security
	wrapped := auth.Middleware(auth.SecConfig{
		SigningSecret:  sec.SigningSecret,
		AllowedOrigins: append([]string{}, sec.CORS.AllowedOrigins...),
		RPS:            sec.RateLimit.RPS,
		Burst:          sec.RateLimit.Burst,
		IPWhitelist:    append([]string{}, sec.IPWhitelist...),
	})(mux)
	return telemetry.Middleware(wrapped)
}

// serveHTTP runs the HTTP server until ctx is canceled, then shuts it
// down gracefully.
func (a *App) serveHTTP(ctx context.Context) error {
	srv := &http.Server{Addr: a.eff.Addr, Handler: a.BuildHandler()}
	a.srv = &httpServer{srv: srv}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("http_shutdown_failed", "error", err)
			return err
		}
		logger.Info("http_shutdown_complete")
		return nil
	}
}
