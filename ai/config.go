// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://integrate.api.nvidia.com/v1"
	EmbeddingHost string

	// SummaryHost is the base URL for the chat completion service used for summaries.
	SummaryHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "nvidia/nv-embedqa-e5-v5"
	EmbeddingModel string

	// SummaryModel is the model identifier to use for summarization.
	SummaryModel string

	// EmbeddingToken and SummaryToken are bearer tokens. Empty means the
	// service does not require authentication.
	EmbeddingToken string
	SummaryToken   string

	// MaxInputChars bounds the characters of a chunk sent for embedding.
	// Default: 1000
	MaxInputChars int

	// Dimension is the expected vector dimension. 0 disables the check.
	// Default: 1024
	Dimension int

	// RequestsPerSecond limits embedding requests. 0 disables limiting.
	RequestsPerSecond float64

	// SummaryInputChars bounds the document prefix sent for summarization.
	// Default: 4000
	SummaryInputChars int

	// SummaryMaxTokens caps the length of a generated summary.
	// Default: 400
	SummaryMaxTokens int

	// SummaryTemperature is the sampling temperature for summaries.
	// Default: 0.5
	SummaryTemperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithSummaryHost sets the summarization service host URL.
func WithSummaryHost(host string) ConfigOption {
	return func(c *Config) {
		c.SummaryHost = host
	}
}

// WithHost sets both embedding and summary hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.SummaryHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithSummaryModel sets the summarization model identifier.
func WithSummaryModel(model string) ConfigOption {
	return func(c *Config) {
		c.SummaryModel = model
	}
}

// WithToken sets the bearer token for both services.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingToken = token
		c.SummaryToken = token
	}
}

// WithMaxInputChars sets the per-chunk embedding input bound.
func WithMaxInputChars(n int) ConfigOption {
	return func(c *Config) {
		c.MaxInputChars = n
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithRequestsPerSecond sets the embedding request rate limit.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config targeting the NVIDIA hosted OpenAI-compatible endpoints.
func DefaultConfig() *Config {
	defaultHost := "https://integrate.api.nvidia.com/v1"
	return &Config{
		EmbeddingHost:      defaultHost,
		SummaryHost:        defaultHost,
		EmbeddingModel:     "nvidia/nv-embedqa-e5-v5",
		SummaryModel:       "nvidia/llama-3.1-nemotron-70b-instruct",
		MaxInputChars:      1000,
		Dimension:          1024,
		SummaryInputChars:  4000,
		SummaryMaxTokens:   400,
		SummaryTemperature: 0.5,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithDimension(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.SummaryHost = normalizeHost(c.SummaryHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.SummaryHost == "" {
		return errors.New("ai config: SummaryHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.SummaryModel == "" {
		return errors.New("ai config: SummaryModel is required")
	}
	if c.MaxInputChars < 1 {
		return errors.New("ai config: MaxInputChars must be positive")
	}
	if c.Dimension < 0 {
		return errors.New("ai config: Dimension cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	if c.SummaryInputChars < 1 || c.SummaryMaxTokens < 1 {
		return errors.New("ai config: summary limits must be positive")
	}
	return nil
}
