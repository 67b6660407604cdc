package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFullConfig(t *testing.T) {
	p := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/chatdb
  stream_timeout: 45s
security:
  signing_secret: s3cret
  cors:
    allowed_origins: ["https://app.example.com"]
  rate_limit:
    rps: 2.5
    burst: 5
provider:
  api_key: sk-test
  default_model: gpt-4.1
  title_model: gpt-4.1-mini
uploads:
  max_file_size: 8MB
retention:
  enabled: true
  cron: "0 2 * * *"
  period: 720h
  batch_size: 100
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, 45*time.Second, cfg.StreamTimeout())
	assert.Equal(t, "s3cret", cfg.Security.SigningSecret)
	assert.Equal(t, 2.5, cfg.Security.RateLimit.RPS)
	assert.Equal(t, int64(8*1000*1000), cfg.Uploads.MaxFileSize.Int64())
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Retention.Period.Duration())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.StreamTimeout())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a map")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestDurationUnmarshal(t *testing.T) {
	var s struct {
		D Duration `yaml:"d"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("d: 250ms"), &s))
	assert.Equal(t, 250*time.Millisecond, s.D.Duration())

	require.NoError(t, yaml.Unmarshal([]byte("d: 2"), &s))
	assert.Equal(t, 2*time.Second, s.D.Duration())

	assert.Error(t, yaml.Unmarshal([]byte("d: soon"), &s))
}

func TestSizeBytesUnmarshal(t *testing.T) {
	var s struct {
		S SizeBytes `yaml:"s"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("s: 1024"), &s))
	assert.Equal(t, int64(1024), s.S.Int64())

	require.NoError(t, yaml.Unmarshal([]byte("s: 1KiB"), &s))
	assert.Equal(t, int64(1024), s.S.Int64())

	assert.Error(t, yaml.Unmarshal([]byte("s: big"), &s))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_PORT", "9999")
	t.Setenv("CHAT_SIGNING_SECRET", "from-env")
	t.Setenv("CHAT_STREAM_TIMEOUT", "90s")

	cfg := &Config{}
	assert.True(t, applyEnvOverrides(cfg))
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Security.SigningSecret)
	assert.Equal(t, 90*time.Second, cfg.StreamTimeout())
}

func TestLoadEffectivePrecedence(t *testing.T) {
	p := writeConfig(t, `
server:
  port: 7070
  db_path: /tmp/from-file
`)

	// no flags set: file wins
	eff, err := LoadEffective(p, ":8080", "./data", map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7070", eff.Addr)
	assert.Equal(t, "config", eff.Source)
	assert.Equal(t, "/tmp/from-file", eff.DBPath)

	// explicit flags beat the file
	eff, err = LoadEffective(p, "127.0.0.1:6060", "/tmp/flagdb", map[string]bool{"addr": true, "db": true})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6060", eff.Addr)
	assert.Equal(t, "flags", eff.Source)
	assert.Equal(t, "/tmp/flagdb", eff.DBPath)
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "/explicit.yaml", ResolveConfigPath("/explicit.yaml", true))

	t.Setenv("CHAT_CONFIG", "/from-env.yaml")
	assert.Equal(t, "/from-env.yaml", ResolveConfigPath("", false))
}
