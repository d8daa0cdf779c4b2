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
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"api_key": "secret", "server_address": ":9000"},
		"store": {"backend": "sql", "driver": "sqlite3"},
		"engagement": {"min_messages": 6},
		"scoring": {"lexicon_path": "lexicon.yaml"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "sql", cfg.Store.Backend)
	assert.Equal(t, 6, cfg.Engagement.MinMessages)
	// untouched fields keep their defaults
	assert.Equal(t, 0.65, cfg.Engagement.ScamThreshold)
	assert.Equal(t, 3, cfg.Callback.MaxAttempts)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "lexicon.yaml"), cfg.Scoring.LexiconPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"basic_config": {"api_key": "from-file"}}`)
	t.Setenv("HONEYPOT_API_KEY", "from-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("SCAM_THRESHOLD", "0.7")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("LLM_API_KEY", "g-key")
	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.BasicConfig.APIKey)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 0.7, cfg.Engagement.ScamThreshold)
	assert.Equal(t, "gemini", cfg.Reply.Provider)
	assert.Equal(t, "g-key", cfg.Providers["gemini"].APIKey)
	assert.Equal(t, 9, cfg.Callback.TimeoutSeconds)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{}`))
		assert.ErrorContains(t, err, "api_key")
	})
	t.Run("bad threshold", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{"basic_config":{"api_key":"k"},"engagement":{"scam_threshold":1.5}}`))
		assert.ErrorContains(t, err, "scam_threshold")
	})
	t.Run("unknown backend", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{"basic_config":{"api_key":"k"},"store":{"backend":"etcd"}}`))
		assert.ErrorContains(t, err, "etcd")
	})
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("HONEYPOT_API_KEY", "")
	cfg, err := Read(writeConfig(t, `{"extraction": {"country_code": "44"}}`))
	require.NoError(t, err)
	assert.Equal(t, "44", cfg.Extraction.CountryCode)
	assert.Error(t, cfg.Validate())
}
