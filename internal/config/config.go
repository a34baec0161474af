package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	keyPort            = "PORT"
	keyOpenAIAPIKey    = "OPENAI_API_KEY"
	keyAPIKeyParam     = "OPENAI_API_KEY_PARAM"
	keyOpenAIBaseURL   = "OPENAI_BASE_URL"
	keyOpenAIModel     = "OPENAI_MODEL"
	keyUpstreamTimeout = "UPSTREAM_TIMEOUT"
	keyAllowedOrigins  = "ALLOWED_ORIGINS"
	keyLogLevel        = "LOG_LEVEL"
	keyEnvFile         = "ENV_FILE"

	wildcardOrigin = "*"

	// A bare number parses as nanoseconds; anything this short is a missing unit.
	minUpstreamTimeout = time.Second
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Port            int
	OpenAIAPIKey    string
	APIKeyParam     string
	OpenAIBaseURL   string
	OpenAIModel     string
	UpstreamTimeout time.Duration
	AllowedOrigins  []string
	LogLevel        string
}

// Load reads configuration from the environment, falling back to an optional
// dotenv file (ENV_FILE, default ".env"). Variables already present in the
// environment win over the file.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(keyPort, 8000)
	v.SetDefault(keyOpenAIModel, "gpt-4o-mini")
	v.SetDefault(keyUpstreamTimeout, 30*time.Second)
	v.SetDefault(keyAllowedOrigins, wildcardOrigin)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyEnvFile, ".env")
	v.AutomaticEnv()

	if envFile := strings.TrimSpace(v.GetString(keyEnvFile)); envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Port:            v.GetInt(keyPort),
		OpenAIAPIKey:    strings.TrimSpace(v.GetString(keyOpenAIAPIKey)),
		APIKeyParam:     strings.TrimSpace(v.GetString(keyAPIKeyParam)),
		OpenAIBaseURL:   strings.TrimSpace(v.GetString(keyOpenAIBaseURL)),
		OpenAIModel:     strings.TrimSpace(v.GetString(keyOpenAIModel)),
		UpstreamTimeout: v.GetDuration(keyUpstreamTimeout),
		AllowedOrigins:  ParseOrigins(v.GetString(keyAllowedOrigins)),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString(keyLogLevel))),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with. A missing API key
// is not one of them: /chat reports it per request instead.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: %s must be between 1 and 65535, got %d", keyPort, c.Port)
	}
	if c.UpstreamTimeout < minUpstreamTimeout {
		return fmt.Errorf("config: %s must be at least %s (e.g. 30s), got %s", keyUpstreamTimeout, minUpstreamTimeout, c.UpstreamTimeout)
	}
	if c.OpenAIModel == "" {
		return fmt.Errorf("config: %s must not be empty", keyOpenAIModel)
	}
	if c.OpenAIBaseURL != "" {
		u, err := url.Parse(c.OpenAIBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: %s must be an http(s) URL, got %q", keyOpenAIBaseURL, c.OpenAIBaseURL)
		}
	}
	for _, o := range c.AllowedOrigins {
		if o == wildcardOrigin {
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("config: %s entry %q must be %q or start with http:// or https://", keyAllowedOrigins, o, wildcardOrigin)
		}
	}
	return nil
}

// ParseOrigins splits a comma-separated origin list. Blank input means "*".
func ParseOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return []string{wildcardOrigin}
	}
	return out
}

// AllowsOrigin reports whether a browser origin passes the CORS allow-list.
func (c Config) AllowsOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range c.AllowedOrigins {
		if o == wildcardOrigin || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// TokenGetter reads a credential from a secret store.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// ResolveAPIKey returns a copy of c whose OpenAIAPIKey is filled from the
// secret store when it is not set directly and APIKeyParam names a parameter.
func (c Config) ResolveAPIKey(ctx context.Context, g TokenGetter) (Config, error) {
	if c.OpenAIAPIKey != "" || c.APIKeyParam == "" {
		return c, nil
	}
	if g == nil {
		return c, errors.New("config: token getter must not be nil")
	}
	key, err := g.GetToken(ctx, c.APIKeyParam)
	if err != nil {
		return c, fmt.Errorf("config: resolve %s from %s: %w", keyOpenAIAPIKey, c.APIKeyParam, err)
	}
	out := c
	out.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	out.OpenAIAPIKey = key
	return out, nil
}
