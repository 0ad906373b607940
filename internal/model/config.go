package model

import "time"

// Config holds all intake configuration
type Config struct {
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Training    TrainingConfig    `yaml:"training" mapstructure:"training"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ExtractionConfig tunes the extraction pipeline
type ExtractionConfig struct {
	FieldFloor          float64 `yaml:"field_floor" mapstructure:"field_floor"`                   // Candidates below this raw confidence are dropped
	ClassifierThreshold float64 `yaml:"classifier_threshold" mapstructure:"classifier_threshold"` // Minimum score to accept a document type
	KeywordWindow       int     `yaml:"keyword_window" mapstructure:"keyword_window"`             // Default search window after a keyword (chars)
	MaxInputBytes       int     `yaml:"max_input_bytes" mapstructure:"max_input_bytes"`           // Longer input is truncated before extraction
}

// TrainingConfig tunes how corrections move rule weights
type TrainingConfig struct {
	SuccessStep  float64 `yaml:"success_step" mapstructure:"success_step"`
	FailureStep  float64 `yaml:"failure_step" mapstructure:"failure_step"`
	AffinityStep float64 `yaml:"affinity_step" mapstructure:"affinity_step"`
	MaxAffinity  float64 `yaml:"max_affinity" mapstructure:"max_affinity"`
}

// RulesConfig points at the rule definition set
type RulesConfig struct {
	File string `yaml:"file" mapstructure:"file"` // Empty uses the built-in rule set
}

// StoreConfig selects where training records and bank snapshots live
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite
	Path   string `yaml:"path" mapstructure:"path"`     // SQLite database path
}

// CacheConfig configures result and provenance caching
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL       time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Directory     string        `yaml:"directory" mapstructure:"directory"`
	ProvenanceTTL time.Duration `yaml:"provenance_ttl" mapstructure:"provenance_ttl"` // How long source text is kept for training attribution
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Documents per second per source directory
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    string        `yaml:"max_body_bytes" mapstructure:"max_body_bytes"` // echo body-limit syntax, e.g. "4M"
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, console
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			FieldFloor:          0.15,
			ClassifierThreshold: 0.5,
			KeywordWindow:       60,
			MaxInputBytes:       500_000,
		},
		Training: TrainingConfig{
			SuccessStep:  0.05,
			FailureStep:  0.1,
			AffinityStep: 0.05,
			MaxAffinity:  2.0,
		},
		Store: StoreConfig{
			Driver: "memory",
			Path:   "intake.db",
		},
		Cache: CacheConfig{
			Enabled:       true,
			MemoryTTL:     30 * time.Minute,
			DiskTTL:       7 * 24 * time.Hour,
			Directory:     ".intake-cache",
			ProvenanceTTL: 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			RequestsPerSecond: 50,
			BurstSize:         10,
		},
		Server: ServerConfig{
			Addr:            "localhost:8088",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    "4M",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
