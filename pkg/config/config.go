package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "igarchive/pkg/errors"
)

const envPrefix = "IGARCHIVE_"

// Config holds all configuration options for the archiver
type Config struct {
	// Remote source and credentials
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Pagination settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Retry policy for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Client-side request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Where checkpoints and archives live
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Text encodings tried when reading archives
	Codec CodecConfig `yaml:"codec" json:"codec"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the GraphQL endpoint and credential settings
type InstagramConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	DocID     string `yaml:"doc_id" json:"doc_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Token     string `yaml:"token" json:"token"`
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
}

// FetchConfig holds pagination settings
type FetchConfig struct {
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	MaxBatches int           `yaml:"max_batches" json:"max_batches"` // 0 means unbounded
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	IDField    string        `yaml:"id_field" json:"id_field"`
}

// RetryConfig holds the backoff policy for transient fetch failures
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor   float64       `yaml:"jitter_factor" json:"jitter_factor"`
	MalformedLimit int           `yaml:"malformed_limit" json:"malformed_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"` // 0 disables pacing
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// StorageConfig holds the on-disk layout settings
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
	Version string `yaml:"version" json:"version"`
}

// CodecConfig lists candidate encodings by WHATWG label, most preferred first
type CodecConfig struct {
	Encodings []string `yaml:"encodings" json:"encodings"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			BaseURL:   "https://www.instagram.com",
			DocID:     "7898261790222653",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Fetch: FetchConfig{
			BatchSize:  50,
			MaxBatches: 0,
			Timeout:    30 * time.Second,
			IDField:    "id",
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			BaseDelay:      2 * time.Second,
			MaxDelay:       60 * time.Second,
			Multiplier:     2.0,
			JitterFactor:   0.1,
			MalformedLimit: 2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         1,
		},
		Storage: StorageConfig{
			DataDir: DefaultDataDir(),
		},
		Codec: CodecConfig{
			Encodings: []string{"utf-8", "utf-16le", "windows-1252", "iso-8859-1"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns the platform data directory for igarchive.
// It does not create the directory.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "igarchive")
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "igarchive")
		}
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "igarchive")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "igarchive")
		}
	}
	return filepath.Join(".", ".igarchive")
}

// LoadFromEnv loads configuration from IGARCHIVE_* environment variables
func (c *Config) LoadFromEnv() error {
	var problems []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, fmt.Errorf("%s%s: %q is not an integer", envPrefix, name, v))
			return
		}
		*dst = n
	}

	setString("BASE_URL", &c.Instagram.BaseURL)
	setString("DOC_ID", &c.Instagram.DocID)
	setString("USER_AGENT", &c.Instagram.UserAgent)
	setString("TOKEN", &c.Instagram.Token)
	setString("SESSION_ID", &c.Instagram.SessionID)
	setString("CSRF_TOKEN", &c.Instagram.CSRFToken)

	setInt("BATCH_SIZE", &c.Fetch.BatchSize)
	setInt("MAX_BATCHES", &c.Fetch.MaxBatches)
	setString("ID_FIELD", &c.Fetch.IDField)

	setInt("MAX_RETRIES", &c.Retry.MaxAttempts)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	setString("DATA_DIR", &c.Storage.DataDir)
	setString("VERSION", &c.Storage.Version)

	if encodings := os.Getenv(envPrefix + "ENCODINGS"); encodings != "" {
		c.Codec.Encodings = splitList(encodings)
	}

	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igarchive.yaml",
		".igarchive.yml",
		filepath.Join(home, ".config", "igarchive", "config.yaml"),
		filepath.Join(home, ".config", "igarchive", "config.yml"),
		filepath.Join(home, ".igarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems []error

	if c.Instagram.BaseURL == "" {
		problems = append(problems, errors.New("instagram base URL is required"))
	}
	if c.Instagram.DocID == "" {
		problems = append(problems, errors.New("instagram doc_id is required"))
	}

	if c.Fetch.BatchSize <= 0 {
		problems = append(problems, errors.New("batch size must be positive"))
	}
	if c.Fetch.MaxBatches < 0 {
		problems = append(problems, errors.New("max batches cannot be negative"))
	}
	if c.Fetch.Timeout <= 0 {
		problems = append(problems, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.IDField == "" {
		problems = append(problems, errors.New("record id field is required"))
	}

	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		problems = append(problems, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		problems = append(problems, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		problems = append(problems, errors.New("retry jitter factor must be between 0 and 1"))
	}
	if c.Retry.MalformedLimit < 1 {
		problems = append(problems, errors.New("malformed response limit must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		problems = append(problems, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		problems = append(problems, errors.New("burst size must be positive"))
	}

	if c.Storage.DataDir == "" {
		problems = append(problems, errors.New("data directory is required"))
	}
	if strings.ContainsAny(c.Storage.Version, `/\`) {
		problems = append(problems, errors.New("storage version cannot contain path separators"))
	}

	if len(c.Codec.Encodings) == 0 {
		problems = append(problems, errors.New("at least one codec encoding is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	return nil
}

// HasCredentials reports whether any credential is configured
func (c *Config) HasCredentials() bool {
	return c.Instagram.Token != "" || c.Instagram.SessionID != ""
}

// Redacted returns a copy with credentials masked, suitable for display
func (c *Config) Redacted() *Config {
	copied := *c
	copied.Codec.Encodings = append([]string(nil), c.Codec.Encodings...)
	copied.Instagram.Token = mask(c.Instagram.Token)
	copied.Instagram.SessionID = mask(c.Instagram.SessionID)
	copied.Instagram.CSRFToken = mask(c.Instagram.CSRFToken)
	return &copied
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys that are present override the current values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["token"].(string); ok && v != "" {
		c.Instagram.Token = v
	}
	if v, ok := flags["doc-id"].(string); ok && v != "" {
		c.Instagram.DocID = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Instagram.BaseURL = v
	}
	if v, ok := flags["batch-size"].(int); ok {
		c.Fetch.BatchSize = v
	}
	if v, ok := flags["max-batches"].(int); ok {
		c.Fetch.MaxBatches = v
	}
	if v, ok := flags["id-field"].(string); ok && v != "" {
		c.Fetch.IDField = v
	}
	if v, ok := flags["max-retries"].(int); ok {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["rate-limit"].(int); ok {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Storage.DataDir = v
	}
	if v, ok := flags["version"].(string); ok {
		c.Storage.Version = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env files > config file > defaults.
// Any failure is reported as a configuration-class error.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to load config file")
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to load environment variables")
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "configuration validation failed")
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mask masks all but the first 4 and last 4 characters of a string
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
