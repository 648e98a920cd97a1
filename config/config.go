package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Audit AuditConfig `yaml:"audit"`
}

// AuditConfig is the project configuration.
type AuditConfig struct {
	Input      InputConfig      `yaml:"input"`
	Graph      GraphConfig      `yaml:"graph"`
	Buffers    BuffersConfig    `yaml:"buffers"`
	Stores     StoresConfig     `yaml:"stores"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Output     OutputConfig     `yaml:"output"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig controls where audit lines come from.
type InputConfig struct {
	// Mode selects "file" replay or "live" bridge consumption.
	Mode string `yaml:"mode"`
	// Path is the audit log for file mode.
	Path string `yaml:"path"`
	// Sort replays the file in event order instead of write order.
	Sort bool `yaml:"sort"`
	// Arch is the audited machine architecture, "64" or "32" (machine
	// names like x86_64 or i686 also work). Required for file replay;
	// live mode detects the host arch when unset.
	Arch string `yaml:"arch"`
	// Bridge is the command launched in live mode, with arguments.
	Bridge []string `yaml:"bridge"`
	// SeedProc seeds processes and descriptors from /proc at startup.
	SeedProc bool `yaml:"seed_proc"`
	// ProcPath overrides the proc mount point, for tests.
	ProcPath string `yaml:"proc_path"`
}

// GraphConfig controls which provenance the syscall handlers emit.
type GraphConfig struct {
	Simplify            bool             `yaml:"simplify"`
	Units               bool             `yaml:"units"`
	FileIO              bool             `yaml:"file_io"`
	NetIO               bool             `yaml:"net_io"`
	Memory              bool             `yaml:"memory"`
	UnixSockets         bool             `yaml:"unix_sockets"`
	NetSocketVersioning bool             `yaml:"net_socket_versioning"`
	OnlySuccessful      bool             `yaml:"only_successful"`
	Versioning          VersioningConfig `yaml:"versioning"`
}

// VersioningConfig controls artifact version bookkeeping.
type VersioningConfig struct {
	// ExcludePrefixes lists path prefixes that never get version bumps.
	ExcludePrefixes []string `yaml:"exclude_prefixes"`
}

// BuffersConfig sizes the two bounded caches.
type BuffersConfig struct {
	Events    CacheConfig `yaml:"events"`
	Artifacts CacheConfig `yaml:"artifacts"`
}

// CacheConfig sizes one bounded cache and its membership filter.
type CacheConfig struct {
	MaxEntries        int     `yaml:"max_entries"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
	Hash              string  `yaml:"hash"`
}

// StoresConfig selects the overflow store backend.
type StoresConfig struct {
	// Mode selects "sqlite" or "redis".
	Mode   string            `yaml:"mode"`
	SQLite SQLiteStoreConfig `yaml:"sqlite"`
	Redis  RedisStoreConfig  `yaml:"redis"`
}

// SQLiteStoreConfig config for on-disk overflow databases.
type SQLiteStoreConfig struct {
	Dir string `yaml:"dir"`
}

// RedisStoreConfig config for Redis overflow storage.
type RedisStoreConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CheckpointConfig controls state persistence across runs.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls graph output.
type OutputConfig struct {
	File FileOutputConfig `yaml:"file"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	// WaitForLog keeps consuming buffered input on shutdown until the
	// feed runs dry or the drain timeout expires. Defaults to true.
	WaitForLog   *bool         `yaml:"wait_for_log"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
