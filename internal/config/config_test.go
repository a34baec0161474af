package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	keyPort, keyOpenAIAPIKey, keyAPIKeyParam, keyOpenAIBaseURL, keyOpenAIModel,
	keyUpstreamTimeout, keyAllowedOrigins, keyLogLevel,
}

// cleanEnv blanks every setting and points ENV_FILE at a file that does not exist.
func cleanEnv(t *testing.T) string {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv(keyEnvFile, filepath.Join(dir, "missing.env"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Empty(t, cfg.OpenAIAPIKey)
	require.Empty(t, cfg.APIKeyParam)
	require.Empty(t, cfg.OpenAIBaseURL)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	cleanEnv(t)
	t.Setenv(keyPort, "9090")
	t.Setenv(keyOpenAIAPIKey, "  sk-env  ")
	t.Setenv(keyOpenAIBaseURL, "http://localhost:11434/v1")
	t.Setenv(keyUpstreamTimeout, "45s")
	t.Setenv(keyAllowedOrigins, "https://a.example.com, https://b.example.com/,,")
	t.Setenv(keyLogLevel, "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	require.Equal(t, "http://localhost:11434/v1", cfg.OpenAIBaseURL)
	require.Equal(t, 45*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnvFile_EnvironmentWins(t *testing.T) {
	dir := cleanEnv(t)
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-from-file\nALLOWED_ORIGINS=https://file.example.com\nPORT=7000\n"), 0o600))
	t.Setenv(keyEnvFile, path)
	t.Setenv(keyPort, "7100")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-from-file", cfg.OpenAIAPIKey)
	require.Equal(t, []string{"https://file.example.com"}, cfg.AllowedOrigins)
	require.Equal(t, 7100, cfg.Port)
}

func TestLoad_InvalidSettings(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{keyPort, "not-a-port", "PORT"},
		{keyPort, "70000", "PORT"},
		{keyUpstreamTimeout, "-1s", "UPSTREAM_TIMEOUT"},
		{keyUpstreamTimeout, "30", "UPSTREAM_TIMEOUT"},
		{keyUpstreamTimeout, "500ms", "UPSTREAM_TIMEOUT"},
		{keyAllowedOrigins, "example.com", "ALLOWED_ORIGINS"},
		{keyOpenAIBaseURL, "ftp://example.com", "OPENAI_BASE_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseOrigins(t *testing.T) {
	require.Equal(t, []string{"*"}, ParseOrigins(""))
	require.Equal(t, []string{"*"}, ParseOrigins(" , "))
	require.Equal(t, []string{"*"}, ParseOrigins("*"))
	require.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, ParseOrigins("http://localhost:3000,https://app.example.com"))
}

func TestAllowsOrigin(t *testing.T) {
	wildcard := Config{AllowedOrigins: []string{"*"}}
	require.True(t, wildcard.AllowsOrigin("https://anything.example.com"))
	require.False(t, wildcard.AllowsOrigin(""))

	list := Config{AllowedOrigins: []string{"https://app.example.com"}}
	require.True(t, list.AllowsOrigin("https://app.example.com"))
	require.True(t, list.AllowsOrigin("HTTPS://APP.EXAMPLE.COM"))
	require.False(t, list.AllowsOrigin("https://evil.example.com"))
}

type fakeTokenGetter struct {
	token string
	err   error
	names []string
}

func (f *fakeTokenGetter) GetToken(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	return f.token, f.err
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("direct key wins", func(t *testing.T) {
		g := &fakeTokenGetter{token: "sk-ssm"}
		cfg, err := Config{OpenAIAPIKey: "sk-env", APIKeyParam: "/p"}.ResolveAPIKey(ctx, g)
		require.NoError(t, err)
		require.Equal(t, "sk-env", cfg.OpenAIAPIKey)
		require.Empty(t, g.names)
	})

	t.Run("no parameter configured", func(t *testing.T) {
		cfg, err := Config{}.ResolveAPIKey(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, cfg.OpenAIAPIKey)
	})

	t.Run("from parameter store", func(t *testing.T) {
		g := &fakeTokenGetter{token: "sk-ssm"}
		orig := Config{APIKeyParam: "/chat-relay/openai-api-key", AllowedOrigins: []string{"*"}}
		cfg, err := orig.ResolveAPIKey(ctx, g)
		require.NoError(t, err)
		require.Equal(t, "sk-ssm", cfg.OpenAIAPIKey)
		require.Empty(t, orig.OpenAIAPIKey)
		require.Equal(t, []string{"/chat-relay/openai-api-key"}, g.names)
	})

	t.Run("store failure", func(t *testing.T) {
		g := &fakeTokenGetter{err: errors.New("AccessDenied")}
		cfg, err := Config{APIKeyParam: "/p"}.ResolveAPIKey(ctx, g)
		require.ErrorContains(t, err, "AccessDenied")
		require.Empty(t, cfg.OpenAIAPIKey)
	})

	t.Run("nil getter", func(t *testing.T) {
		_, err := Config{APIKeyParam: "/p"}.ResolveAPIKey(ctx, nil)
		require.Error(t, err)
	})
}
