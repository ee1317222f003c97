package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration wraps time.Duration so it can be written as "15s" in config.toml.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the global ~/.chatline/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	Server         Server  `toml:"server"`
	Client         Client  `toml:"client"`
	Metrics        Metrics `toml:"metrics"`
	Log            Log     `toml:"log"`
}

// Server locates the chat backend.
type Server struct {
	APIURL         string   `toml:"api_url"`
	SocketURL      string   `toml:"socket_url"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Client tunes the local synchronization layer.
type Client struct {
	MaxImageBytes int64    `toml:"max_image_bytes"`
	InitTimeout   Duration `toml:"init_timeout"`
	InitAttempts  int      `toml:"init_attempts"`
	ToastDuration Duration `toml:"toast_duration"`
	RedirectDelay Duration `toml:"redirect_delay"`
	AppURL        string   `toml:"app_url"`
	PushToken     string   `toml:"push_token"`
}

// Metrics configures the optional Prometheus listener. Empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: Server{
			APIURL:         "http://localhost:5001/api",
			SocketURL:      "ws://localhost:5001/ws",
			RequestTimeout: Duration{15 * time.Second},
		},
		Client: Client{
			MaxImageBytes: 5 << 20,
			InitTimeout:   Duration{8 * time.Second},
			InitAttempts:  3,
			ToastDuration: Duration{4 * time.Second},
			RedirectDelay: Duration{time.Second},
			AppURL:        "http://localhost:5173/",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load with a missing file treated as Default, followed by
// environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays CHATLINE_* variables, reading a .env file in the working
// directory first when present. Variables already set in the process win over .env.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load()

	if v := os.Getenv("CHATLINE_API_URL"); v != "" {
		cfg.Server.APIURL = v
	}
	if v := os.Getenv("CHATLINE_SOCKET_URL"); v != "" {
		cfg.Server.SocketURL = v
	}
	if v := os.Getenv("CHATLINE_PUSH_TOKEN"); v != "" {
		cfg.Client.PushToken = v
	}
	if v := os.Getenv("CHATLINE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CHATLINE_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("CHATLINE_INIT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATLINE_INIT_ATTEMPTS: %w", err)
		}
		cfg.Client.InitAttempts = n
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
