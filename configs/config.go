// Package config loads sonora's YAML configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/media-luna/sonora/utils/apierrors"
)

// DatabaseConfig selects and parameterizes the relational store backend.
type DatabaseConfig struct {
	Type     string `yaml:"type"` // "mysql" or "postgres"
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// FingerprintConfig controls the spectrogram-through-encoding extraction
// pipeline.
type FingerprintConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	WindowSize      int     `yaml:"window_size"`
	Overlap         int     `yaml:"overlap"`
	FingerprintSize int     `yaml:"fingerprint_size"` // T, tile time-dim and frequency bins
	StartFrequency  float64 `yaml:"start_frequency"`
	EndFrequency    float64 `yaml:"end_frequency"`
	TopWavelets     int     `yaml:"top_wavelets"`
	LogBase         float64 `yaml:"log_base"`
}

// LSHConfig controls MinHash sketching and band layout.
type LSHConfig struct {
	SignatureLength     int     `yaml:"signature_length"` // K
	HashTables          int     `yaml:"hash_tables"`      // L
	HashKeysPerTable    int     `yaml:"hash_keys_per_table"` // B
	ThresholdTables     int     `yaml:"threshold_tables"`
	MaxSignatureCount   int     `yaml:"max_signature_count"`
	TopCandidates       int     `yaml:"top_candidates"`
	HammingBlend        float64 `yaml:"hamming_blend"` // alpha, the Hamming/vote-ordering blend constant; 0 is supported and ranks by hammingDistance/totalTableVotes alone
	PermutationSeed     int64   `yaml:"permutation_seed"`
	PermutationFilePath string  `yaml:"permutation_file_path"`
}

// Config is the top-level configuration document.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	LSH         LSHConfig         `yaml:"lsh"`
}

// LoadConfig reads and parses a YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.TagInvalidConfig, err, "reading config file %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apierrors.Wrap(apierrors.TagInvalidConfig, err, "parsing config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the engine's default configuration: 5512 Hz sample
// rate, 64-frame/64-bin square tiles, 25 bands of 4 signature elements.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "postgres",
		},
		Fingerprint: FingerprintConfig{
			SampleRate:      5512,
			WindowSize:      2048,
			Overlap:         1024,
			FingerprintSize: 64,
			StartFrequency:  318,
			EndFrequency:    2000,
			TopWavelets:     70,
			LogBase:         2,
		},
		LSH: LSHConfig{
			SignatureLength:   100,
			HashTables:        25,
			HashKeysPerTable:  4,
			ThresholdTables:   3,
			MaxSignatureCount: 5,
			TopCandidates:     200,
			HammingBlend:      0.4,
			PermutationFilePath: "permutations.csv",
		},
	}
}

// Validate checks the invariants that must be caught at call entry
// (InvalidConfig), never mid-operation.
func (c *Config) Validate() error {
	T := c.Fingerprint.FingerprintSize
	if T <= 0 || T&(T-1) != 0 {
		return apierrors.InvalidConfigf("fingerprint_size (T=%d) must be a power of two", T)
	}
	if c.LSH.SignatureLength != c.LSH.HashTables*c.LSH.HashKeysPerTable {
		return apierrors.InvalidConfigf(
			"signature_length (K=%d) must equal hash_tables*hash_keys_per_table (L=%d, B=%d -> %d)",
			c.LSH.SignatureLength, c.LSH.HashTables, c.LSH.HashKeysPerTable,
			c.LSH.HashTables*c.LSH.HashKeysPerTable)
	}
	if c.LSH.ThresholdTables > c.LSH.HashTables {
		return apierrors.InvalidConfigf("threshold_tables (%d) cannot exceed hash_tables (%d)",
			c.LSH.ThresholdTables, c.LSH.HashTables)
	}
	if c.Fingerprint.StartFrequency <= 0 || c.Fingerprint.EndFrequency <= c.Fingerprint.StartFrequency {
		return apierrors.InvalidConfigf("start_frequency/end_frequency must satisfy 0 < start < end")
	}
	return nil
}

// FingerprintBits returns the fixed fingerprint bit length F = 2*T*T:
// two bits per coefficient, T*T coefficients per tile.
func (c *Config) FingerprintBits() int {
	T := c.Fingerprint.FingerprintSize
	return 2 * T * T
}
