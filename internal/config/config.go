package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Listen     string    `yaml:"listen"`
	MPV        MPVConfig `yaml:"mpv"`
	ScriptOpts string    `yaml:"script_opts"` // key=value options file; empty asks mpv
	API        APIConfig `yaml:"api"`
	Log        LogConfig `yaml:"log"`
}

// MPVConfig locates the player.
type MPVConfig struct {
	Socket     string `yaml:"socket"`
	ClientName string `yaml:"client_name"`
}

// APIConfig points at the comment and search backends.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	SearchURL string `yaml:"search_url"`
	TimeoutS  int    `yaml:"timeout_s"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

const (
	DefaultListen     = ":8080"
	DefaultSocket     = "/tmp/mpvsocket"
	DefaultClientName = "danmaku"
	DefaultBaseURL    = "https://api.dandanplay.net"
	DefaultSearchURL  = "https://api.so.360kan.com"
	DefaultTimeoutS   = 30
)

// Load reads a YAML config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate fills unset fields and rejects values that cannot work.
func Validate(cfg *Config) error {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.MPV.Socket == "" {
		return fmt.Errorf("mpv.socket is required")
	}
	if cfg.MPV.ClientName == "" {
		cfg.MPV.ClientName = DefaultClientName
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.SearchURL == "" {
		cfg.API.SearchURL = DefaultSearchURL
	}
	if cfg.API.TimeoutS < 0 {
		return fmt.Errorf("api.timeout_s must be >= 0")
	}
	if cfg.API.TimeoutS == 0 {
		cfg.API.TimeoutS = DefaultTimeoutS
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	cfg.ScriptOpts = expandHome(cfg.ScriptOpts)
	return nil
}

// Timeout is the HTTP timeout for backend requests.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutS) * time.Second
}

func defaults() *Config {
	return &Config{
		Listen: DefaultListen,
		MPV: MPVConfig{
			Socket:     DefaultSocket,
			ClientName: DefaultClientName,
		},
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			SearchURL: DefaultSearchURL,
			TimeoutS:  DefaultTimeoutS,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// applyEnv lets the environment override the file, like PORT did for the
// overlay server.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DANMAKU_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("DANMAKU_MPV_SOCKET")); v != "" {
		cfg.MPV.Socket = v
	}
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
