package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend drivers.
const (
	DriverRedis = "redis"
	DriverBleve = "bleve"
)

// Config holds the chemdex configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Search  SearchConfig  `yaml:"search"`
	Oracle  OracleConfig  `yaml:"oracle"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds the ops server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // empty = auth disabled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// BackendConfig holds search backend settings.
type BackendConfig struct {
	Driver           string   `yaml:"driver"` // redis, bleve (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// SearchConfig holds screening and verification settings.
type SearchConfig struct {
	PageSize               int    `yaml:"page_size"`
	DefaultSimilarityLimit int    `yaml:"default_similarity_limit"`
	VerifyWorkers          int    `yaml:"verify_workers"`
	MoleculeCollection     string `yaml:"molecule_collection"`
	ReactionCollection     string `yaml:"reaction_collection"`
}

// OracleConfig holds structure engine settings.
type OracleConfig struct {
	CacheSize      int     `yaml:"cache_size"`        // 0 = default, negative disables the cache
	MaxCallsPerSec float64 `yaml:"max_calls_per_sec"` // 0 = unlimited
	Burst          int     `yaml:"burst"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from the given YAML file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} and ${VAR:-default}.
func Parse(data []byte) (Config, error) {
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
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverRedis
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Backend.KeyPrefix == "" {
		c.Backend.KeyPrefix = "chemdex:"
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 100
	}
	if c.Search.DefaultSimilarityLimit <= 0 {
		c.Search.DefaultSimilarityLimit = 10
	}
	if c.Search.VerifyWorkers <= 0 {
		c.Search.VerifyWorkers = 8
	}
	if c.Search.MoleculeCollection == "" {
		c.Search.MoleculeCollection = "molecules"
	}
	if c.Search.ReactionCollection == "" {
		c.Search.ReactionCollection = "reactions"
	}
	if c.Oracle.CacheSize == 0 {
		c.Oracle.CacheSize = 10_000
	}
	if c.Oracle.Burst <= 0 {
		c.Oracle.Burst = 1
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 5
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	keys := c.Auth.APIKeys[:0]
	for _, k := range c.Auth.APIKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	c.Auth.APIKeys = keys
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case DriverRedis:
		if len(c.Backend.Addrs) == 0 {
			return fmt.Errorf("backend.addrs is required for the redis driver")
		}
	case DriverBleve:
		// in-process, no address
	default:
		return fmt.Errorf("backend.driver must be %q or %q, got %q", DriverRedis, DriverBleve, c.Backend.Driver)
	}
	if c.Search.MoleculeCollection == c.Search.ReactionCollection {
		return fmt.Errorf("search.molecule_collection and search.reaction_collection must differ, both are %q",
			c.Search.MoleculeCollection)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in 1..65535, got %d", c.HTTP.Port)
	}
	if c.Oracle.MaxCallsPerSec < 0 {
		return fmt.Errorf("oracle.max_calls_per_sec must not be negative, got %g", c.Oracle.MaxCallsPerSec)
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
