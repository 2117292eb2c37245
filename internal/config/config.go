package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// Config holds the mmdex console configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Backend   BackendConfig   `yaml:"backend"`
	Search    SearchConfig    `yaml:"search"`
	Chat      ChatConfig      `yaml:"chat"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds console API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Session store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// SessionsConfig holds session state store settings.
type SessionsConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLMinutes       int      `yaml:"ttl_minutes"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TTL returns the session idle expiry.
func (c SessionsConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// BackendConfig holds retrieval backend client settings.
type BackendConfig struct {
	BaseURL    string  `yaml:"base_url"`
	APIKey     string  `yaml:"api_key"`
	RequestBy  string  `yaml:"request_by"`
	TaskType   string  `yaml:"task_type"`
	TimeoutSec int     `yaml:"timeout_sec"`
	Rate       float64 `yaml:"rate"` // requests per second, 0 = unlimited
	Burst      int     `yaml:"burst"`
}

// Timeout returns the per-request backend timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SearchConfig holds retrieval paging settings.
type SearchConfig struct {
	InitialPageSize int `yaml:"initial_page_size"`
	PageIncrement   int `yaml:"page_increment"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	TopK              int `yaml:"top_k"`
	AudioDuration     int `yaml:"audio_duration"`
	PendingTimeoutSec int `yaml:"pending_timeout_sec"`
}

// PendingTimeout returns how long an outstanding reply blocks new submissions.
func (c ChatConfig) PendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutSec) * time.Second
}

// EmbeddingConfig holds embedding request defaults.
type EmbeddingConfig struct {
	ModelID string `yaml:"model_id"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file next to the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Sessions.Driver == "" {
		c.Sessions.Driver = DriverMemory
	}
	if c.Sessions.TTLMinutes <= 0 {
		c.Sessions.TTLMinutes = 60
	}
	if c.Sessions.ReadinessTimeout <= 0 {
		c.Sessions.ReadinessTimeout = 10
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 30
	}
	if c.Backend.Burst <= 0 {
		c.Backend.Burst = 5
	}
	if c.Search.InitialPageSize <= 0 {
		c.Search.InitialPageSize = 9
	}
	if c.Search.PageIncrement <= 0 {
		c.Search.PageIncrement = 6
	}
	if c.Chat.TopK <= 0 {
		c.Chat.TopK = 3
	}
	if c.Chat.AudioDuration <= 0 {
		c.Chat.AudioDuration = request.DefaultAudioDurationSeconds
	}
	if c.Chat.PendingTimeoutSec <= 0 {
		c.Chat.PendingTimeoutSec = 120
	}
	if c.Embedding.ModelID == "" {
		c.Embedding.ModelID = request.DefaultModelID
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Sessions.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Sessions.Addrs) == 0 {
			return fmt.Errorf("sessions.addrs is required for driver %q", c.Sessions.Driver)
		}
	default:
		return fmt.Errorf("sessions.driver must be \"memory\", \"redis\" or \"valkey\", got %q", c.Sessions.Driver)
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Rate < 0 {
		return fmt.Errorf("backend.rate must not be negative, got %v", c.Backend.Rate)
	}
	if c.Chat.AudioDuration < request.MinDurationSeconds || c.Chat.AudioDuration > request.MaxDurationSeconds {
		return fmt.Errorf("chat.audio_duration must be between %d and %d, got %d",
			request.MinDurationSeconds, request.MaxDurationSeconds, c.Chat.AudioDuration)
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding the process env.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
