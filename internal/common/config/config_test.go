package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://localhost:8000
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 30000, cfg.API.Timeout)
	assert.Equal(t, 30000, cfg.API.UploadTimeout)
	assert.Equal(t, 30000, cfg.Cache.StaleTime)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 1000, cfg.Retry.BaseDelay)
	assert.Equal(t, 500, cfg.Retry.MaxJitter)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxBytes)
	assert.Equal(t, 1920, cfg.Upload.MaxWidth)
	assert.Equal(t, 80, cfg.Upload.Quality)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_RetriesCanBeDisabled(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://localhost:8000
retry:
  max_retries: 0
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Retry.MaxRetries)
	assert.Equal(t, 1000, cfg.Retry.BaseDelay)
}

func TestLoadFromFile_MissingBaseURLFailsFast(t *testing.T) {
	path := writeConfig(t, `
app:
  name: fridgetrack
`)
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url is required")
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad environment",
			body: "app:\n  environment: staging\napi:\n  base_url: http://localhost:8000\n",
			want: "App.Environment",
		},
		{
			name: "bad url",
			body: "api:\n  base_url: not a url\n",
			want: "API.BaseURL",
		},
		{
			name: "redis enabled without address",
			body: "api:\n  base_url: http://localhost:8000\ncache:\n  redis:\n    enabled: true\n",
			want: "Cache.Redis.Address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("FRIDGETRACK_API_BASE_URL", "https://api.example.com")
	t.Setenv("FRIDGETRACK_AUTH_TOKEN", "abc")

	path := writeConfig(t, `
api:
  base_url: http://localhost:8000
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "abc", cfg.Auth.Token)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("FRIDGE_TOKEN", "from-env")
	path := writeConfig(t, `
api:
  base_url: http://localhost:8000
auth:
  token: ${FRIDGE_TOKEN}
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Token)
}

func TestResolveBaseURL(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: EnvDevelopment},
		API: APIConfig{BaseURL: "https://api.example.com", ProxyURL: "http://localhost:5173/proxy"},
	}
	assert.Equal(t, "http://localhost:5173/proxy", cfg.ResolveBaseURL())

	cfg.App.Environment = EnvProduction
	assert.Equal(t, "https://api.example.com", cfg.ResolveBaseURL())

	cfg.App.Environment = EnvDevelopment
	cfg.API.ProxyURL = ""
	assert.Equal(t, "https://api.example.com", cfg.ResolveBaseURL())
}
