package logger

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

var Log *slog.Logger

// Init initializes the global slog logger. The provided level string
// ("debug", "info", "warn", "error") wins; when empty it falls back to
// the CHAT_LOG_LEVEL env var. CHAT_LOG_SINK may point logs at a file
// ("file:/path/to/log"), which tests use to keep stdout clean.
func Init(level string) {
	sink := os.Getenv("CHAT_LOG_SINK")
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_LOG_LEVEL")))
	}
	var lv slog.Level
	switch lvl {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	if strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			Log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lv}))
			return
		}
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

func ensure() {
	if Log == nil {
		Init("")
	}
}

func Debug(msg string, args ...any) {
	ensure()
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	ensure()
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	ensure()
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	ensure()
	Log.Error(msg, args...)
}

// LogRequest logs an incoming HTTP request at debug level with sensitive
// headers redacted.
func LogRequest(r *http.Request) {
	ensure()
	if !Log.Enabled(r.Context(), slog.LevelDebug) {
		return
	}
	hdrs := make([]string, 0, len(r.Header))
	for k := range r.Header {
		switch strings.ToLower(k) {
		case "authorization", "x-api-key", "x-provider-key", "x-user-signature":
			hdrs = append(hdrs, k+"=<redacted>")
		default:
			hdrs = append(hdrs, k+"="+r.Header.Get(k))
		}
	}
	Log.Debug("http_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", strings.Join(hdrs, " "))
}
