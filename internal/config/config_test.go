package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate after ApplyDefaults.
func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8000},
		Database:  DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{BaseURL: "http://localhost:8080/v1"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: "http.port must be between 1 and 65535",
		},
		{
			name:    "missing valkey addrs",
			mutate:  func(c *Config) { c.Database.Addrs = nil },
			wantErr: "database.addrs is required",
		},
		{
			name:    "missing postgres dsn",
			mutate:  func(c *Config) { c.Database.Driver = DriverPostgres },
			wantErr: "database.dsn is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "elasticsearch" },
			wantErr: "database.driver must be",
		},
		{
			name:    "missing embedding url",
			mutate:  func(c *Config) { c.Embedding.BaseURL = "" },
			wantErr: "embedding.base_url is required",
		},
		{
			name:    "dimension mismatch",
			mutate:  func(c *Config) { c.Embedding.Dimensions = 768 },
			wantErr: "must equal index.dimensions",
		},
		{
			name:    "unknown algorithm",
			mutate:  func(c *Config) { c.Index.Algorithm = "IVF" },
			wantErr: "index.algorithm must be HNSW or FLAT",
		},
		{
			name: "proportions do not sum to one",
			mutate: func(c *Config) {
				c.Search.Partitions = []PartitionConfig{{Name: "petfinder", Proportion: 0.6}, {Name: "oxford_iiit", Proportion: 0.6}}
			},
			wantErr: "proportions must sum to 1",
		},
		{
			name: "non-positive proportion",
			mutate: func(c *Config) {
				c.Search.Partitions = []PartitionConfig{{Name: "petfinder", Proportion: 1}, {Name: "oxford_iiit", Proportion: 0}}
			},
			wantErr: "proportion must be positive",
		},
		{
			name: "duplicate partition",
			mutate: func(c *Config) {
				c.Search.Partitions = []PartitionConfig{{Name: "petfinder", Proportion: 0.5}, {Name: "petfinder", Proportion: 0.5}}
			},
			wantErr: "duplicate partition",
		},
		{
			name:    "primary not declared",
			mutate:  func(c *Config) { c.Search.PrimaryPartition = "shelter" },
			wantErr: "is not among search.partitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ProportionTolerance(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Partitions = []PartitionConfig{
		{Name: "petfinder", Proportion: 1.0 / 3},
		{Name: "oxford_iiit", Proportion: 2.0 / 3},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != DriverValkey {
		t.Errorf("expected Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Index.Dimensions != 512 || cfg.Embedding.Dimensions != 512 {
		t.Errorf("expected 512 dimensions, got index=%d embedding=%d", cfg.Index.Dimensions, cfg.Embedding.Dimensions)
	}
	if cfg.Index.KeyPrefix != "adoptapet:pet:" {
		t.Errorf("expected KeyPrefix='adoptapet:pet:', got %q", cfg.Index.KeyPrefix)
	}
	if cfg.Search.PrimaryPartition != "petfinder" {
		t.Errorf("expected primary petfinder, got %q", cfg.Search.PrimaryPartition)
	}
	if len(cfg.Search.Partitions) != 2 || cfg.Search.Partitions[0].Proportion != 0.6 {
		t.Errorf("unexpected default partitions: %+v", cfg.Search.Partitions)
	}
	if cfg.Search.Oversample != 3 || cfg.Search.OversampleFloor != 5 {
		t.Errorf("expected oversample 3/+5, got %d/+%d", cfg.Search.Oversample, cfg.Search.OversampleFloor)
	}
	if cfg.Search.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Search.Retry.MaxAttempts)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Index:  IndexConfig{Dimensions: 768, HNSWM: 32},
		Search: SearchConfig{Oversample: 5, Retry: RetryConfig{MaxAttempts: 1}},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected embedding dimensions to follow the index, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.Oversample != 5 || cfg.Search.Retry.MaxAttempts != 1 {
		t.Errorf("explicit search values overridden: %+v", cfg.Search)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ADOPTAPET_TEST_ADDR", "valkey:6379")

	got := string(expandEnvVars([]byte("a: ${ADOPTAPET_TEST_ADDR}\nb: ${ADOPTAPET_TEST_UNSET:-fallback}\nc: ${ADOPTAPET_TEST_UNSET}")))

	want := "a: valkey:6379\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ADOPTAPET_TEST_PORT", "9100")

	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
http:
  port: ${ADOPTAPET_TEST_PORT}
database:
  driver: postgres
  dsn: postgres://localhost/pets
embedding:
  base_url: http://clip:8080/v1
search:
  primary_partition: petfinder
  partitions:
    - name: petfinder
      proportion: 0.7
    - name: oxford_iiit
      proportion: 0.3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "postgres://localhost/pets" {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Search.Partitions[1].Proportion != 0.3 {
		t.Errorf("unexpected partitions: %+v", cfg.Search.Partitions)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
