// Package config loads matching and summarization tunables from a YAML file
// with sensible defaults when the file is absent.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all run tunables. Zero values are filled in by Default.
type Config struct {
	// Matching thresholds.
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // final acceptance bar
	LowThreshold        float64 `yaml:"low_threshold"`        // borderline floor that triggers LLM verification
	VerifyAccepted      bool    `yaml:"verify_accepted"`      // also verify candidates already above the bar

	// Time windows, in days around the inferred occurrence date.
	PrimaryWindowDays  int `yaml:"primary_window_days"`
	ExtendedWindowDays int `yaml:"extended_window_days"`
	DistantWindowDays  int `yaml:"distant_window_days"`

	// Candidate caps per window, to bound verification cost.
	PrimaryCap  int `yaml:"primary_cap"`
	ExtendedCap int `yaml:"extended_cap"`
	DistantCap  int `yaml:"distant_cap"`

	// Transcript summarization.
	MaxChunkChars int `yaml:"max_chunk_chars"`
	SlidingWindow int `yaml:"sliding_window"` // chunk summaries folded into the digest

	// Embedding cache.
	EmbedBatchSize int `yaml:"embed_batch_size"`
	FlushEvery     int `yaml:"flush_every"` // persist cache after this many new entries

	// Provider endpoint and models.
	ProviderURL string `yaml:"provider_url"`
	EmbedModel  string `yaml:"embed_model"`
	GenModel    string `yaml:"gen_model"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		SimilarityThreshold: 0.75,
		LowThreshold:        0.65,
		PrimaryWindowDays:   7,
		ExtendedWindowDays:  30,
		DistantWindowDays:   90,
		PrimaryCap:          5,
		ExtendedCap:         3,
		DistantCap:          2,
		MaxChunkChars:       10000,
		SlidingWindow:       3,
		EmbedBatchSize:      100,
		FlushEvery:          50,
		ProviderURL:         "http://localhost:11434",
		EmbedModel:          "nomic-embed-text",
		GenModel:            "llama3.2",
	}
}

// Load reads a YAML config file on top of the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations the matcher cannot honor.
func (c Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %.2f out of [0,1]", c.SimilarityThreshold)
	}
	if c.LowThreshold < 0 || c.LowThreshold > 1 {
		return fmt.Errorf("low_threshold %.2f out of [0,1]", c.LowThreshold)
	}
	if c.LowThreshold > c.SimilarityThreshold {
		return fmt.Errorf("low_threshold %.2f above similarity_threshold %.2f", c.LowThreshold, c.SimilarityThreshold)
	}
	if c.PrimaryWindowDays > c.ExtendedWindowDays || c.ExtendedWindowDays > c.DistantWindowDays {
		return fmt.Errorf("windows must nest: primary <= extended <= distant")
	}
	if c.MaxChunkChars <= 0 {
		return fmt.Errorf("max_chunk_chars must be positive")
	}
	return nil
}
