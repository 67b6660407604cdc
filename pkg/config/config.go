package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Effective is the merged view of file, env and flag configuration the
// server actually runs with. Source records which layer won the address
// so the startup banner can say so.
type Effective struct {
	Config Config
	Addr   string
	DBPath string
	Source string
}

// Addr returns the listen address derived from Address and Port.
func (c *Config) Addr() string {
	host := c.Server.Address
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// StreamTimeout returns the configured invocation ceiling, defaulted to 30s.
func (c *Config) StreamTimeout() time.Duration {
	if d := c.Server.StreamTimeout.Duration(); d > 0 {
		return d
	}
	return 30 * time.Second
}

// Load reads a YAML config file. A missing path yields zero-value config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseCommandFlags registers and parses the server's command flags.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./data", "pebble database path")
	cfgFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, setFlags
}

// ResolveConfigPath picks the config file path: explicit flag wins, then
// the CHAT_CONFIG env var, then ./chat.yaml when present.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet && flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("CHAT_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("chat.yaml"); err == nil {
		return "chat.yaml"
	}
	return flagPath
}

// applyEnvOverrides mutates cfg from CHAT_* env vars and reports whether
// any were used.
func applyEnvOverrides(cfg *Config) bool {
	used := false
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
			used = true
		}
	}
	set(&cfg.Server.Address, "CHAT_ADDR")
	if v := os.Getenv("CHAT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
			used = true
		}
	}
	set(&cfg.Server.DBPath, "CHAT_DB_PATH")
	set(&cfg.Security.SigningSecret, "CHAT_SIGNING_SECRET")
	set(&cfg.Provider.APIKey, "OPENAI_API_KEY")
	set(&cfg.Provider.BaseURL, "CHAT_PROVIDER_BASE_URL")
	set(&cfg.Provider.DefaultModel, "CHAT_DEFAULT_MODEL")
	set(&cfg.Provider.TitleModel, "CHAT_TITLE_MODEL")
	set(&cfg.Logging.Level, "CHAT_LOG_LEVEL")
	if v := os.Getenv("CHAT_STREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			cfg.Server.StreamTimeout = Duration(d)
			used = true
		}
	}
	return used
}

// LoadEffective merges file, env and flag layers into the effective
// runtime configuration. Flags explicitly set by the user win.
func LoadEffective(path, flagAddr, flagDB string, setFlags map[string]bool) (Effective, error) {
	cfg, err := Load(path)
	if err != nil {
		return Effective{}, err
	}
	envUsed := applyEnvOverrides(cfg)

	eff := Effective{Config: *cfg}
	switch {
	case setFlags["addr"]:
		eff.Addr = flagAddr
		eff.Source = "flags"
	case envUsed && os.Getenv("CHAT_ADDR") != "":
		eff.Addr = cfg.Addr()
		eff.Source = "env"
	default:
		eff.Addr = cfg.Addr()
		eff.Source = "config"
	}
	if setFlags["db"] {
		eff.DBPath = flagDB
	} else if cfg.Server.DBPath != "" {
		eff.DBPath = cfg.Server.DBPath
	} else {
		eff.DBPath = flagDB
	}
	return eff, nil
}
