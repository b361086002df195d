package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Backend names accepted in [remote].backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config represents the global ~/.chatroom/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile"`
	Remote         RemoteConfig `toml:"remote"`
	Chat           ChatConfig   `toml:"chat"`
	Media          MediaConfig  `toml:"media"`
	Log            LogConfig    `toml:"log"`
}

// RemoteConfig selects and configures the remote document store and auth provider.
type RemoteConfig struct {
	Backend     string   `toml:"backend"`
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	Prefix      string   `toml:"prefix"`
	TokenSecret string   `toml:"token_secret"`
	TokenTTL    Duration `toml:"token_ttl"`
}

// ChatConfig configures the chat room.
type ChatConfig struct {
	Room         string `toml:"room"`
	HistoryLimit int    `toml:"history_limit"`
}

// MediaConfig configures the image encoding gate.
type MediaConfig struct {
	MaxDimension       int    `toml:"max_dimension"`
	JPEGQuality        int    `toml:"jpeg_quality"`
	PlaceholderCaption string `toml:"placeholder_caption"`
}

// LogConfig configures the file logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that round-trips through TOML as "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			Backend:  BackendRedis,
			Addr:     "localhost:6379",
			Prefix:   "chatroom",
			TokenTTL: Duration{24 * time.Hour},
		},
		Chat: ChatConfig{
			Room: "messages",
		},
		Media: MediaConfig{
			MaxDimension:       800,
			JPEGQuality:        50,
			PlaceholderCaption: "📷 Photo",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns nil and
// an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
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
