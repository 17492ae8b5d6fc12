// Package config loads the application configuration from an optional TOML
// file layered over defaults.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the application configuration.
type Config struct {
	// ListenAddr is the HTTP facade bind address (e.g., ":8080").
	ListenAddr string `toml:"listen_addr"`

	// KeysPath locates the NAME=value credential resource: a file path or
	// an HTTP(S) URL.
	KeysPath string `toml:"keys_path"`

	// Credential is the name resolved from the keys resource before each
	// completion call.
	Credential string `toml:"credential"`

	Completion Completion `toml:"completion"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`
}

// Completion holds the fixed completion request parameters.
type Completion struct {
	Endpoint       string  `toml:"endpoint"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Timeout returns the completion timeout as a duration.
func (c Completion) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		KeysPath:   "keys.txt",
		Credential: "OPENAI_API_KEY",
		Completion: Completion{
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-3.5-turbo",
			MaxTokens:      500,
			Temperature:    0.7,
			TimeoutSeconds: 120,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	return cfg, nil
}
