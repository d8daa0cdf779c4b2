package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultConfigPath = "config.json"

	apiKeyEnv          = "HONEYPOT_API_KEY"
	storeBackendEnv    = "HONEYPOT_STORE"
	redisURLEnv        = "REDIS_URL"
	llmProviderEnv     = "LLM_PROVIDER"
	llmAPIKeyEnv       = "LLM_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	scamThresholdEnv   = "SCAM_THRESHOLD"
	callbackURLEnv     = "CALLBACK_URL"
	callbackSecretEnv  = "CALLBACK_SECRET"
	callbackTimeoutEnv = "CALLBACK_TIMEOUT_SECONDS"
	logLevelEnv        = "LOG_LEVEL"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Store       StoreConfig               `json:"store"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Engagement  EngagementConfig          `json:"engagement"`
	Scoring     ScoringConfig             `json:"scoring"`
	Extraction  ExtractionConfig          `json:"extraction"`
	Callback    CallbackConfig            `json:"callback"`
	Reply       ReplyConfig               `json:"reply"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	APIKey        string `json:"api_key"`
	LogLevel      string `json:"log_level"`
	// callback delivery pool
	MinWorkers        int `json:"min_workers"`
	MaxWorkers        int `json:"max_workers"`
	QueueSize         int `json:"queue_size"`
	WorkerIdleTimeout int `json:"worker_idle_timeout"` // seconds
	// per-session serializer
	SessionIdleTimeout int `json:"session_idle_timeout"` // seconds
	TurnTimeout        int `json:"turn_timeout"`         // seconds
}

// StoreConfig selects the session backend at startup.
type StoreConfig struct {
	Backend         string `json:"backend"` // redis | sql | memory
	Driver          string `json:"driver"`  // sqlite3 | mysql | postgres, for the sql backend
	DisableFallback bool   `json:"disable_fallback"`
	TTLMinutes      int    `json:"ttl_minutes"`
}

type RedisConfig struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Lease    bool   `json:"lease"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type EngagementConfig struct {
	ScamThreshold      float64 `json:"scam_threshold"`
	MinMessages        int     `json:"min_messages"`
	MaxDurationSeconds int     `json:"max_duration_seconds"`
}

type ScoringConfig struct {
	LexiconPath string `json:"lexicon_path"`
}

type ExtractionConfig struct {
	CountryCode    string   `json:"country_code"`
	NationalLength int      `json:"national_length"`
	LeadingDigits  string   `json:"leading_digits"`
	UPIHandles     []string `json:"upi_handles"`
}

type CallbackConfig struct {
	URL              string `json:"url"`
	Secret           string `json:"secret"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	MaxAttempts      int    `json:"max_attempts"`
	InitialBackoffMS int    `json:"initial_backoff_ms"`
	MaxBackoffMS     int    `json:"max_backoff_ms"`
}

type ReplyConfig struct {
	Provider       string `json:"provider"` // openai | gemini | claude | ollama | canned
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxChars       int    `json:"max_chars"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:      ":8090",
			LogLevel:           "info",
			MinWorkers:         2,
			MaxWorkers:         8,
			QueueSize:          256,
			WorkerIdleTimeout:  30,
			SessionIdleTimeout: 60,
			TurnTimeout:        30,
		},
		Store: StoreConfig{
			Backend:    "memory",
			Driver:     "sqlite3",
			TTLMinutes: 24 * 60,
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "file:honeypot.db?cache=shared&_busy_timeout=5000"},
		},
		Engagement: EngagementConfig{
			ScamThreshold: 0.65,
			MinMessages:   8,
		},
		Extraction: ExtractionConfig{
			CountryCode:    "91",
			NationalLength: 10,
			LeadingDigits:  "6789",
		},
		Callback: CallbackConfig{
			URL:              "https://hackathon.guvi.in/api/updateHoneyPotFinalResult",
			TimeoutSeconds:   5,
			MaxAttempts:      3,
			InitialBackoffMS: 200,
			MaxBackoffMS:     2000,
		},
		Reply: ReplyConfig{
			Provider:       "canned",
			TimeoutSeconds: 8,
			MaxChars:       500,
		},
		Providers: map[string]ProviderConfig{},
	}
}

// Load reads configuration from the provided path (defaults to config.json), then
// applies .env and environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without Validate, for offline tools that need no server settings.
func Read(path string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	explicit := path != ""
	if path == "" {
		path = defaultConfigPath
	}

	cfg := Default()
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		cfg.resolvePaths(filepath.Dir(absPath))
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	if p := c.Scoring.LexiconPath; p != "" && !filepath.IsAbs(p) {
		c.Scoring.LexiconPath = filepath.Join(base, p)
	}
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.BasicConfig.APIKey = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.BasicConfig.LogLevel = v
	}
	if v := os.Getenv(storeBackendEnv); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
		if os.Getenv(storeBackendEnv) == "" {
			c.Store.Backend = "redis"
		}
	}
	if v := os.Getenv(llmProviderEnv); v != "" {
		c.Reply.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.Reply.Model = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		if c.Providers == nil {
			c.Providers = map[string]ProviderConfig{}
		}
		p := c.Providers[c.Reply.Provider]
		p.APIKey = v
		c.Providers[c.Reply.Provider] = p
	}
	if v := os.Getenv(scamThresholdEnv); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", scamThresholdEnv, err)
		}
		c.Engagement.ScamThreshold = f
	}
	if v := os.Getenv(callbackURLEnv); v != "" {
		c.Callback.URL = v
	}
	if v := os.Getenv(callbackSecretEnv); v != "" {
		c.Callback.Secret = v
	}
	if v := os.Getenv(callbackTimeoutEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", callbackTimeoutEnv, err)
		}
		c.Callback.TimeoutSeconds = n
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.BasicConfig.APIKey == "" {
		return fmt.Errorf("api_key must be configured (or set %s)", apiKeyEnv)
	}
	if t := c.Engagement.ScamThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("scam_threshold must be in (0,1], got %v", t)
	}
	if c.Engagement.MinMessages <= 0 {
		return errors.New("min_messages must be positive")
	}
	switch c.Store.Backend {
	case "redis", "sql", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	if c.Callback.URL == "" {
		return errors.New("callback url must be configured")
	}
	if c.Callback.MaxAttempts <= 0 {
		return errors.New("callback max_attempts must be positive")
	}
	return nil
}

// SessionTTL is how long the durable backends retain a session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Store.TTLMinutes) * time.Minute
}

func (c CallbackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CallbackConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c CallbackConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

func (c ReplyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
