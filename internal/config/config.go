// Package config holds server configuration sourced from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// AnthropicBaseURLDefault is the provider endpoint.
	AnthropicBaseURLDefault = "https://api.anthropic.com"
	// AnthropicVersion is the provider API version header value.
	AnthropicVersion = "2023-06-01"
	// DefaultModelDefault is the Claude model OpenAI aliases resolve to.
	DefaultModelDefault = "claude-sonnet-4-5"
	// DefaultMaxTokensDefault is applied when a request omits max_tokens.
	DefaultMaxTokensDefault = 8192
)

// ServerConfig holds all server configuration.
type ServerConfig struct {
	Host             string
	Port             int
	Verbose          bool
	Debug            bool
	AnthropicAPIKey  string
	AnthropicBaseURL string
	DefaultModel     string
	DefaultMaxTokens int
	ModelsFile       string
	KeysFile         string
}

// DefaultFromEnv creates a ServerConfig with defaults from environment
// variables.
func DefaultFromEnv() *ServerConfig {
	return &ServerConfig{
		Host:             envOrDefault("LLMUX_HOST", "127.0.0.1"),
		Port:             envInt("LLMUX_PORT", 8082),
		Verbose:          envBool("LLMUX_VERBOSE"),
		Debug:            envBool("LLMUX_DEBUG"),
		AnthropicAPIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL: envOrDefault("LLMUX_ANTHROPIC_BASE_URL", AnthropicBaseURLDefault),
		DefaultModel:     envOrDefault("LLMUX_DEFAULT_MODEL", DefaultModelDefault),
		DefaultMaxTokens: envInt("LLMUX_DEFAULT_MAX_TOKENS", DefaultMaxTokensDefault),
		ModelsFile:       os.Getenv("LLMUX_MODELS_FILE"),
		KeysFile:         envOrDefault("LLMUX_KEYS_FILE", defaultKeysFile()),
	}
}

func defaultKeysFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "api_keys.json"
	}
	return filepath.Join(home, ".llmux", "api_keys.json")
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
