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

// Package config loads the lectern configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend names.
const (
	BackendBadger   = "badger"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendPinecone = "pinecone"

	SessionChrome = "chrome"
	SessionHTTP   = "http"
)

// Environment variables that override secrets and endpoints from the file.
const (
	EnvEmbeddingToken = "LECTERN_EMBEDDING_TOKEN"
	EnvNvidiaAPIKey   = "NVIDIA_API_KEY"
	EnvPineconeAPIKey = "PINECONE_API_KEY"
	EnvMongoURI       = "MONGO_URI"
	EnvPostgresDSN    = "LECTERN_POSTGRES_DSN"
	EnvGCSBucket      = "LECTERN_GCS_BUCKET"
	EnvGCSEmulator    = "STORAGE_EMULATOR_HOST"
)

type SelectorsConfig struct {
	Item       string `yaml:"item,omitempty"`
	Title      string `yaml:"title,omitempty"`
	Image      string `yaml:"image,omitempty"`
	DetailLink string `yaml:"detail_link,omitempty"`
	Summary    string `yaml:"summary,omitempty"`
	NextPage   string `yaml:"next_page,omitempty"`
	Overlay    string `yaml:"overlay,omitempty"`
	FileLink   string `yaml:"file_link,omitempty"`
}

type ScraperConfig struct {
	StartURL           string          `yaml:"start_url"`
	Session            string          `yaml:"session"`
	Headless           bool            `yaml:"headless"`
	ChromePath         string          `yaml:"chrome_path"`
	UserAgent          string          `yaml:"user_agent"`
	PageTimeoutSec     int             `yaml:"page_timeout_sec"`
	ItemTimeoutSec     int             `yaml:"item_timeout_sec"`
	FileLinkTimeoutSec int             `yaml:"file_link_timeout_sec"`
	SettleDelayMS      int             `yaml:"settle_delay_ms"`
	MaxRestarts        int             `yaml:"max_restarts"`
	RestartDelaySec    int             `yaml:"restart_delay_sec"`
	Readability        bool            `yaml:"readability"`
	Selectors          SelectorsConfig `yaml:"selectors"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Bucket          string `yaml:"bucket"`
	EmulatorHost    string `yaml:"emulator_host"`
	CredentialsFile string `yaml:"credentials_file"`
}

type MetadataConfig struct {
	Backend    string `yaml:"backend"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
}

type VectorsConfig struct {
	Backend    string `yaml:"backend"`
	APIKey     string `yaml:"api_key"`
	IndexName  string `yaml:"index_name"`
	Host       string `yaml:"host"`
	Namespace  string `yaml:"namespace"`
	APIVersion string `yaml:"api_version"`
}

type AIConfig struct {
	EmbeddingHost     string  `yaml:"embedding_host"`
	SummaryHost       string  `yaml:"summary_host"`
	EmbeddingModel    string  `yaml:"embedding_model"`
	SummaryModel      string  `yaml:"summary_model"`
	Token             string  `yaml:"token"`
	Dimension         int     `yaml:"dimension"`
	MaxInputChars     int     `yaml:"max_input_chars"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type ChunkingConfig struct {
	MaxChars int `yaml:"max_chars"`
	Overlap  int `yaml:"overlap"`
}

type IndexingConfig struct {
	BatchSize     int  `yaml:"batch_size"`
	ExcerptChars  int  `yaml:"excerpt_chars"`
	PoolSize      int  `yaml:"pool_size"`
	FetchAttempts int  `yaml:"fetch_attempts"`
	Normalize     bool `yaml:"normalize"`
}

// Config is the complete lectern configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Storage  StorageConfig  `yaml:"storage"`
	Metadata MetadataConfig `yaml:"metadata"`
	Vectors  VectorsConfig  `yaml:"vectors"`
	AI       AIConfig       `yaml:"ai"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Indexing IndexingConfig `yaml:"indexing"`
}

// Default returns a configuration that runs entirely on a local badger
// database against the NVIDIA hosted models.
func Default() *Config {
	return &Config{
		DataDir: "lectern-data",
		Scraper: ScraperConfig{
			StartURL:           "https://rpc.cfainstitute.org/en/research-foundation/publications#sort=%40officialz32xdate%20descending&f:SeriesContent=[Research%20Foundation]",
			Session:            SessionChrome,
			Headless:           true,
			PageTimeoutSec:     10,
			ItemTimeoutSec:     10,
			FileLinkTimeoutSec: 20,
			SettleDelayMS:      3000,
			MaxRestarts:        3,
			RestartDelaySec:    5,
		},
		Storage:  StorageConfig{Backend: BackendBadger},
		Metadata: MetadataConfig{Backend: BackendBadger, Database: "lectern", Collection: "publications"},
		Vectors:  VectorsConfig{Backend: BackendBadger, Namespace: "publications"},
		AI: AIConfig{
			EmbeddingHost:  "https://integrate.api.nvidia.com/v1",
			SummaryHost:    "https://integrate.api.nvidia.com/v1",
			EmbeddingModel: "nvidia/nv-embedqa-e5-v5",
			SummaryModel:   "nvidia/llama-3.1-nemotron-70b-instruct",
			Dimension:      1024,
			MaxInputChars:  1000,
		},
		Chunking: ChunkingConfig{MaxChars: 15000, Overlap: 5},
		Indexing: IndexingConfig{BatchSize: 50, ExcerptChars: 500, PoolSize: 1, FetchAttempts: 3},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.AI.Token, EnvEmbeddingToken, EnvNvidiaAPIKey)
	set(&c.Vectors.APIKey, EnvPineconeAPIKey)
	set(&c.Metadata.URI, EnvMongoURI)
	set(&c.Storage.Bucket, EnvGCSBucket)
	set(&c.Storage.EmulatorHost, EnvGCSEmulator)
	if c.Metadata.Backend == BackendPostgres {
		set(&c.Metadata.DSN, EnvPostgresDSN)
	}
}

// Validate reports every problem found, joined, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}
	usesBadger := false

	switch c.Scraper.Session {
	case SessionChrome, SessionHTTP:
	default:
		fail("unknown scraper session %q", c.Scraper.Session)
	}
	if c.Scraper.StartURL == "" {
		fail("scraper.start_url is required")
	}
	if c.Scraper.MaxRestarts < 0 {
		fail("scraper.max_restarts must not be negative")
	}

	switch c.Storage.Backend {
	case BackendBadger:
		usesBadger = true
	case BackendMemory:
	case BackendGCS:
		if c.Storage.Bucket == "" {
			fail("storage.bucket is required for the gcs backend")
		}
	default:
		fail("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Metadata.Backend {
	case BackendBadger:
		usesBadger = true
	case BackendMongo:
		if c.Metadata.URI == "" {
			fail("metadata.uri is required for the mongo backend")
		}
	case BackendPostgres, BackendSQLite:
		if c.Metadata.DSN == "" {
			fail("metadata.dsn is required for the %s backend", c.Metadata.Backend)
		}
	default:
		fail("unknown metadata backend %q", c.Metadata.Backend)
	}

	switch c.Vectors.Backend {
	case BackendBadger:
		usesBadger = true
	case BackendPinecone:
		if c.Vectors.APIKey == "" {
			fail("vectors.api_key is required for the pinecone backend")
		}
		if c.Vectors.Host == "" && c.Vectors.IndexName == "" {
			fail("vectors.host or vectors.index_name is required for the pinecone backend")
		}
	default:
		fail("unknown vectors backend %q", c.Vectors.Backend)
	}

	if usesBadger && c.DataDir == "" {
		fail("data_dir is required when a badger backend is used")
	}
	if c.AI.Dimension < 0 {
		fail("ai.dimension must not be negative")
	}
	if c.Chunking.MaxChars < 1 {
		fail("chunking.max_chars must be greater than 0")
	}
	if c.Chunking.Overlap < 0 {
		fail("chunking.overlap must not be negative")
	}
	if c.Indexing.BatchSize < 1 {
		fail("indexing.batch_size must be greater than 0")
	}
	if c.Indexing.FetchAttempts < 1 {
		fail("indexing.fetch_attempts must be greater than 0")
	}

	return errors.Join(errs...)
}

// NeedsBadger reports whether any backend is served by the local database.
func (c *Config) NeedsBadger() bool {
	return c.Storage.Backend == BackendBadger ||
		c.Metadata.Backend == BackendBadger ||
		c.Vectors.Backend == BackendBadger
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// PageTimeout and the following helpers convert the integer settings.
func (s ScraperConfig) PageTimeout() time.Duration     { return seconds(s.PageTimeoutSec) }
func (s ScraperConfig) ItemTimeout() time.Duration     { return seconds(s.ItemTimeoutSec) }
func (s ScraperConfig) FileLinkTimeout() time.Duration { return seconds(s.FileLinkTimeoutSec) }
func (s ScraperConfig) RestartDelay() time.Duration    { return seconds(s.RestartDelaySec) }
func (s ScraperConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMS) * time.Millisecond
}
