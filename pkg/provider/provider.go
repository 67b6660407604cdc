// Package provider talks to the model backend. All calls resolve a
// credential first; a request without one fails with
// models.ErrMissingAPIKey before anything goes over the wire.
package provider

import (
	"net/http"
	"strings"

	go_openai "github.com/sashabaranov/go-openai"

	"github.com/westbrookdaniel/chat/pkg/config"
	"github.com/westbrookdaniel/chat/pkg/models"
)

const (
	defaultModel      = "gpt-4.1"
	defaultTitleModel = "gpt-4.1-mini"
)

// Factory builds provider clients from configuration plus per-request
// credentials.
type Factory struct {
	cfg config.ProviderConfig
}

// NewFactory wires provider configuration.
func NewFactory(cfg config.ProviderConfig) *Factory {
	return &Factory{cfg: cfg}
}

// ResolveKey picks the credential for a request: an explicit
// X-Provider-Key header wins, otherwise the configured server-wide key.
func (f *Factory) ResolveKey(r *http.Request) (string, error) {
	if k := strings.TrimSpace(r.Header.Get("X-Provider-Key")); k != "" {
		return k, nil
	}
	if f.cfg.APIKey != "" {
		return f.cfg.APIKey, nil
	}
	return "", models.ErrMissingAPIKey
}

// Model maps thread options to a concrete model identifier.
func (f *Factory) Model(opts models.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	if f.cfg.DefaultModel != "" {
		return f.cfg.DefaultModel
	}
	return defaultModel
}

// TitleModel returns the model used for title synthesis.
func (f *Factory) TitleModel() string {
	if f.cfg.TitleModel != "" {
		return f.cfg.TitleModel
	}
	return defaultTitleModel
}

func (f *Factory) client(key string) *go_openai.Client {
	cc := go_openai.DefaultConfig(key)
	if f.cfg.BaseURL != "" {
		cc.BaseURL = f.cfg.BaseURL
	}
	return go_openai.NewClientWithConfig(cc)
}
