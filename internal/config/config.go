package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverValkey   = "valkey"
	DriverPostgres = "postgres"
)

// proportionTolerance is the accepted deviation of the partition proportion sum from 1.
const proportionTolerance = 1e-6

// Config holds the adoptapet configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"`
	MaxOpenConns     int      `yaml:"max_open_conns"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds pet index layout and bulk load settings.
type IndexConfig struct {
	Name            string `yaml:"name"`
	KeyPrefix       string `yaml:"key_prefix"`
	Dimensions      int    `yaml:"dimensions"`
	Algorithm       string `yaml:"algorithm"` // HNSW, FLAT
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	BatchSize       int    `yaml:"batch_size"`
	LoadWorkers     int    `yaml:"load_workers"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	TextModel   string `yaml:"text_model"`
	ImageModel  string `yaml:"image_model"`
	Dimensions  int    `yaml:"dimensions"`
	ImageSize   int    `yaml:"image_size"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 disables the query embedding cache
}

// PartitionConfig is one partition's share of the images section.
type PartitionConfig struct {
	Name       string  `yaml:"name"`
	Proportion float64 `yaml:"proportion"`
}

// SearchConfig holds composition and fetch resilience settings.
type SearchConfig struct {
	PrimaryPartition string            `yaml:"primary_partition"`
	Partitions       []PartitionConfig `yaml:"partitions"`
	Oversample       int               `yaml:"oversample"`
	OversampleFloor  int               `yaml:"oversample_floor"`
	EmbedTimeoutMs   int               `yaml:"embed_timeout_ms"`
	FetchTimeoutMs   int               `yaml:"fetch_timeout_ms"`
	Retry            RetryConfig       `yaml:"retry"`
}

// RetryConfig bounds retries of transient index errors.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded into the environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 30
	}

	c.applyIndexDefaults()
	c.applyEmbeddingDefaults()
	c.applySearchDefaults()
}

func (c *Config) applyIndexDefaults() {
	if c.Index.Name == "" {
		c.Index.Name = "pets"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "adoptapet:pet:"
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 512
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "HNSW"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 100
	}
	if c.Index.LoadWorkers <= 0 {
		c.Index.LoadWorkers = 4
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "clip"
	}
	if c.Embedding.TextModel == "" {
		c.Embedding.TextModel = "ViT-B-32"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = c.Index.Dimensions
	}
	if c.Embedding.ImageSize <= 0 {
		c.Embedding.ImageSize = 224
	}
}

func (c *Config) applySearchDefaults() {
	s := &c.Search
	if s.PrimaryPartition == "" {
		s.PrimaryPartition = "petfinder"
	}
	if len(s.Partitions) == 0 {
		s.Partitions = []PartitionConfig{
			{Name: "petfinder", Proportion: 0.6},
			{Name: "oxford_iiit", Proportion: 0.4},
		}
	}
	if s.Oversample <= 0 {
		s.Oversample = 3
	}
	if s.OversampleFloor <= 0 {
		s.OversampleFloor = 5
	}
	if s.EmbedTimeoutMs <= 0 {
		s.EmbedTimeoutMs = 10000
	}
	if s.FetchTimeoutMs <= 0 {
		s.FetchTimeoutMs = 2000
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = 3
	}
	if s.Retry.BaseDelayMs <= 0 {
		s.Retry.BaseDelayMs = 50
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverValkey)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverValkey, DriverPostgres, c.Database.Driver)
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Embedding.Dimensions != c.Index.Dimensions {
		return fmt.Errorf("embedding.dimensions (%d) must equal index.dimensions (%d)",
			c.Embedding.Dimensions, c.Index.Dimensions)
	}

	switch strings.ToUpper(c.Index.Algorithm) {
	case "HNSW", "FLAT":
	default:
		return fmt.Errorf("index.algorithm must be HNSW or FLAT, got %q", c.Index.Algorithm)
	}

	return c.Search.validate()
}

func (s *SearchConfig) validate() error {
	var sum float64
	primaryDeclared := false
	seen := make(map[string]bool, len(s.Partitions))
	for _, p := range s.Partitions {
		if p.Name == "" {
			return fmt.Errorf("search.partitions: name is required")
		}
		if seen[p.Name] {
			return fmt.Errorf("search.partitions: duplicate partition %q", p.Name)
		}
		seen[p.Name] = true
		if p.Proportion <= 0 {
			return fmt.Errorf("search.partitions.%s.proportion must be positive, got %v", p.Name, p.Proportion)
		}
		sum += p.Proportion
		if p.Name == s.PrimaryPartition {
			primaryDeclared = true
		}
	}
	if math.Abs(sum-1) > proportionTolerance {
		return fmt.Errorf("search.partitions proportions must sum to 1, got %v", sum)
	}
	if !primaryDeclared {
		return fmt.Errorf("search.primary_partition %q is not among search.partitions", s.PrimaryPartition)
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
