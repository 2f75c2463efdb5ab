package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	errs "igarchive/pkg/errors"
)

// isolate keeps tests away from the developer's real config files and env
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	for _, name := range []string{
		"BASE_URL", "DOC_ID", "USER_AGENT", "TOKEN", "SESSION_ID", "CSRF_TOKEN",
		"BATCH_SIZE", "MAX_BATCHES", "ID_FIELD", "MAX_RETRIES", "REQUESTS_PER_MINUTE",
		"DATA_DIR", "VERSION", "ENCODINGS", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(envPrefix+name, "")
	}

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
	return home
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.Instagram.BaseURL)
	assert.NotEmpty(t, cfg.Instagram.DocID)
	assert.NotEmpty(t, cfg.Instagram.UserAgent)

	assert.Equal(t, 50, cfg.Fetch.BatchSize)
	assert.Equal(t, 0, cfg.Fetch.MaxBatches)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "id", cfg.Fetch.IDField)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2, cfg.Retry.MalformedLimit)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 1, cfg.RateLimit.BurstSize)

	assert.Equal(t, []string{"utf-8", "utf-16le", "windows-1252", "iso-8859-1"}, cfg.Codec.Encodings)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestDefaultDataDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG only applies on linux")
	}
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "data", "igarchive"), DefaultDataDir())
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("IGARCHIVE_TOKEN", "env-token")
	t.Setenv("IGARCHIVE_SESSION_ID", "env-session")
	t.Setenv("IGARCHIVE_BATCH_SIZE", "12")
	t.Setenv("IGARCHIVE_MAX_BATCHES", "3")
	t.Setenv("IGARCHIVE_REQUESTS_PER_MINUTE", "30")
	t.Setenv("IGARCHIVE_DATA_DIR", "/tmp/igarchive-test")
	t.Setenv("IGARCHIVE_ENCODINGS", "utf-8, windows-1252 ,")
	t.Setenv("IGARCHIVE_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-token", cfg.Instagram.Token)
	assert.Equal(t, "env-session", cfg.Instagram.SessionID)
	assert.Equal(t, 12, cfg.Fetch.BatchSize)
	assert.Equal(t, 3, cfg.Fetch.MaxBatches)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/tmp/igarchive-test", cfg.Storage.DataDir)
	assert.Equal(t, []string{"utf-8", "windows-1252"}, cfg.Codec.Encodings)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("IGARCHIVE_BATCH_SIZE", "lots")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGARCHIVE_BATCH_SIZE")
	assert.Equal(t, 50, cfg.Fetch.BatchSize)
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
instagram:
  doc_id: "123"
fetch:
  batch_size: 2
  timeout: 45s
retry:
  base_delay: 500ms
  max_delay: 10s
storage:
  data_dir: /var/lib/igarchive
  version: v2
codec:
  encodings: [utf-8, iso-8859-1]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "123", cfg.Instagram.DocID)
	assert.Equal(t, 2, cfg.Fetch.BatchSize)
	assert.Equal(t, 45*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, "/var/lib/igarchive", cfg.Storage.DataDir)
	assert.Equal(t, "v2", cfg.Storage.Version)
	assert.Equal(t, []string{"utf-8", "iso-8859-1"}, cfg.Codec.Encodings)
	// untouched keys keep their defaults
	assert.Equal(t, "id", cfg.Fetch.IDField)
}

func TestLoadFromFileErrors(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()

	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fetch: [unclosed"), 0644))
	err = cfg.LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestFindConfigFile(t *testing.T) {
	t.Run("finds config in current directory", func(t *testing.T) {
		home := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(home, ".igarchive.yaml"), []byte("fetch: {}"), 0644))

		assert.Equal(t, ".igarchive.yaml", DefaultConfig().findConfigFile())
	})

	t.Run("finds config under ~/.config", func(t *testing.T) {
		home := isolate(t)
		path := filepath.Join(home, ".config", "igarchive", "config.yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("fetch: {}"), 0644))

		assert.Equal(t, path, DefaultConfig().findConfigFile())
	})

	t.Run("no config file found", func(t *testing.T) {
		isolate(t)
		assert.Empty(t, DefaultConfig().findConfigFile())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(*Config)
		expectError   bool
		errorContains []string
	}{
		{
			name:        "valid config",
			setupConfig: func(cfg *Config) {},
		},
		{
			name: "no credentials is still valid",
			setupConfig: func(cfg *Config) {
				cfg.Instagram.Token = ""
				cfg.Instagram.SessionID = ""
			},
		},
		{
			name: "invalid fetch settings",
			setupConfig: func(cfg *Config) {
				cfg.Fetch.BatchSize = 0
				cfg.Fetch.MaxBatches = -1
				cfg.Fetch.Timeout = 0
				cfg.Fetch.IDField = ""
			},
			expectError: true,
			errorContains: []string{
				"batch size must be positive",
				"max batches cannot be negative",
				"fetch timeout must be positive",
				"record id field is required",
			},
		},
		{
			name: "invalid retry settings",
			setupConfig: func(cfg *Config) {
				cfg.Retry.MaxAttempts = 0
				cfg.Retry.Multiplier = 0.5
				cfg.Retry.JitterFactor = 2
				cfg.Retry.MalformedLimit = 0
			},
			expectError: true,
			errorContains: []string{
				"retry max attempts must be at least 1",
				"retry multiplier must be at least 1",
				"jitter factor",
				"malformed response limit",
			},
		},
		{
			name: "invalid rate limit",
			setupConfig: func(cfg *Config) {
				cfg.RateLimit.RequestsPerMinute = 10
				cfg.RateLimit.BurstSize = 0
			},
			expectError:   true,
			errorContains: []string{"burst size must be positive"},
		},
		{
			name: "rate limiting disabled ignores burst",
			setupConfig: func(cfg *Config) {
				cfg.RateLimit.RequestsPerMinute = 0
				cfg.RateLimit.BurstSize = 0
			},
		},
		{
			name: "invalid storage",
			setupConfig: func(cfg *Config) {
				cfg.Storage.DataDir = ""
				cfg.Storage.Version = "../v1"
			},
			expectError: true,
			errorContains: []string{
				"data directory is required",
				"path separators",
			},
		},
		{
			name: "no encodings",
			setupConfig: func(cfg *Config) {
				cfg.Codec.Encodings = nil
			},
			expectError:   true,
			errorContains: []string{"codec encoding"},
		},
		{
			name: "invalid log level",
			setupConfig: func(cfg *Config) {
				cfg.Logging.Level = "loud"
			},
			expectError:   true,
			errorContains: []string{"invalid log level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setupConfig(cfg)

			err := cfg.Validate()

			if tt.expectError {
				require.Error(t, err)
				for _, contains := range tt.errorContains {
					assert.Contains(t, err.Error(), contains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"token":       "flag-token",
		"batch-size":  7,
		"max-batches": 2,
		"data-dir":    "/data",
		"log-level":   "warn",
		"doc-id":      "",
	})

	assert.Equal(t, "flag-token", cfg.Instagram.Token)
	assert.Equal(t, 7, cfg.Fetch.BatchSize)
	assert.Equal(t, 2, cfg.Fetch.MaxBatches)
	assert.Equal(t, "/data", cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// empty strings do not clobber
	assert.Equal(t, DefaultConfig().Instagram.DocID, cfg.Instagram.DocID)
}

func TestLoad(t *testing.T) {
	t.Run("precedence", func(t *testing.T) {
		home := isolate(t)
		path := filepath.Join(home, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fetch:\n  batch_size: 10\n  max_batches: 4\n"), 0644))
		t.Setenv("IGARCHIVE_BATCH_SIZE", "20")

		cfg, err := Load(path, map[string]interface{}{"max-batches": 9})
		require.NoError(t, err)

		assert.Equal(t, 20, cfg.Fetch.BatchSize)
		assert.Equal(t, 9, cfg.Fetch.MaxBatches)
	})

	t.Run("invalid values are configuration errors", func(t *testing.T) {
		isolate(t)
		_, err := Load("", map[string]interface{}{"batch-size": 0})
		require.Error(t, err)
		assert.True(t, errs.IsConfiguration(err))
		assert.Contains(t, err.Error(), "batch size must be positive")
	})

	t.Run("unreadable file is a configuration error", func(t *testing.T) {
		isolate(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.Error(t, err)
		assert.True(t, errs.IsConfiguration(err))
	})
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Fetch.BatchSize = 3
	cfg.Retry.BaseDelay = 1500 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	loaded.Fetch.BatchSize = 99
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 3, loaded.Fetch.BatchSize)
	assert.Equal(t, 1500*time.Millisecond, loaded.Retry.BaseDelay)

	var raw map[string]interface{}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "rate_limit")
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instagram.Token = "abcdefghijklmnop"
	cfg.Instagram.SessionID = "short"

	red := cfg.Redacted()
	assert.Equal(t, "abcd...mnop", red.Instagram.Token)
	assert.Equal(t, "********", red.Instagram.SessionID)
	assert.Empty(t, red.Instagram.CSRFToken)
	// original untouched
	assert.Equal(t, "abcdefghijklmnop", cfg.Instagram.Token)
	assert.True(t, cfg.HasCredentials())
}
