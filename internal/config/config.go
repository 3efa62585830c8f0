// Package config loads dropsearch settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Index backends
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// Config holds all runtime settings
type Config struct {
	// HTTP
	ListenAddr      string
	MetricsAddr     string
	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Logging
	LogLevel  string
	LogFormat string

	// Dropbox
	Dropbox DropboxConfig

	// Index
	Index IndexConfig

	// Sync
	Sync SyncConfig

	// Query path
	CacheTTL  time.Duration
	CacheSize int
}

// DropboxConfig configures the change source
type DropboxConfig struct {
	AccessToken    string
	AppSecret      string // verifies webhook signatures when set
	FolderPath     string
	IncludeDeleted bool
	Timeout        time.Duration
}

// IndexConfig configures the index engine
type IndexConfig struct {
	Backend       string
	DataDir       string
	Name          string
	PipelineName  string
	PipelineIndex string
	Timeout       time.Duration
	IndexedChars  int // -1 extracts the full text
}

// SyncConfig configures the sync orchestrator
type SyncConfig struct {
	MaxFileSize         int64
	SupportedExtensions []string
	BatchSize           int
	FreshnessTTL        time.Duration
	FreshnessCacheSize  int
	IndexingInterval    time.Duration // 0 disables the periodic full sync
	PollBackoff         time.Duration
}

// Load reads the optional .env file at envFilePath, then the environment.
// A missing .env file is not an error.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:      listenAddr(),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		CORSOrigins:     envList("CORS", []string{"*"}),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 900000)) * time.Millisecond,
		RateLimitMax:    envInt("RATE_LIMIT_MAX_REQUESTS", 100),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),

		Dropbox: DropboxConfig{
			AccessToken:    os.Getenv("DROPBOX_ACCESS_TOKEN"),
			AppSecret:      os.Getenv("DROPBOX_APP_SECRET"),
			FolderPath:     normalizeFolder(envOr("DROPBOX_FOLDER_PATH", "")),
			IncludeDeleted: envBool("DROPBOX_INCLUDE_DELETED", false),
			Timeout:        envSeconds("DROPBOX_TIMEOUT_SECONDS", 120),
		},

		Index: IndexConfig{
			Backend:       strings.ToLower(envOr("INDEX_BACKEND", BackendSQLite)),
			DataDir:       envOr("INDEX_DATA_DIR", "./data"),
			Name:          envFirst([]string{"INDEX_NAME", "ELASTICSEARCH_INDEX"}, "documents"),
			PipelineName:  envFirst([]string{"PIPELINE_NAME", "ELASTICSEARCH_PIPELINE_NAME"}, "attachment"),
			PipelineIndex: envFirst([]string{"PIPELINE_INDEX", "ELASTICSEARCH_PIPELINE_INDEX"}, "documents-staging"),
			Timeout:       envSeconds("INDEX_TIMEOUT_SECONDS", 10),
			IndexedChars:  envInt("ATTACHMENT_INDEXED_CHARS", -1),
		},

		Sync: SyncConfig{
			MaxFileSize:         envInt64("MAX_FILE_SIZE", 50*1024*1024),
			SupportedExtensions: normalizeExtensions(envList("SUPPORTED_EXTENSIONS", []string{".txt", ".pdf", ".docx"})),
			BatchSize:           envInt("BATCH_SIZE", 3),
			FreshnessTTL:        envSeconds("FRESHNESS_TTL_SECONDS", 3600),
			FreshnessCacheSize:  envInt("FRESHNESS_CACHE_SIZE", 10000),
			IndexingInterval:    envSeconds("INDEXING_INTERVAL_SECONDS", 30),
			PollBackoff:         envSeconds("POLL_BACKOFF_SECONDS", 5),
		},

		CacheTTL:  envSeconds("CACHE_TTL", 3600),
		CacheSize: envInt("CACHE_SIZE", 1000),
	}

	return cfg, nil
}

// Validate reports settings that would prevent the service from running.
// requireToken is false for commands that never contact Dropbox.
func (c *Config) Validate(requireToken bool) error {
	var errs []error
	if requireToken && c.Dropbox.AccessToken == "" {
		errs = append(errs, errors.New("DROPBOX_ACCESS_TOKEN is required"))
	}
	if c.Index.Backend != BackendSQLite && c.Index.Backend != BackendBleve {
		errs = append(errs, fmt.Errorf("INDEX_BACKEND must be %q or %q, got %q", BackendSQLite, BackendBleve, c.Index.Backend))
	}
	if c.Index.Name == "" || c.Index.PipelineName == "" || c.Index.PipelineIndex == "" {
		errs = append(errs, errors.New("index, pipeline and pipeline index names must not be empty"))
	}
	if c.Index.Name == c.Index.PipelineIndex {
		errs = append(errs, errors.New("PIPELINE_INDEX must differ from INDEX_NAME"))
	}
	if c.Index.Timeout <= 0 {
		errs = append(errs, errors.New("INDEX_TIMEOUT_SECONDS must be positive"))
	}
	if c.Sync.BatchSize < 1 {
		errs = append(errs, errors.New("BATCH_SIZE must be at least 1"))
	}
	if c.Sync.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if len(c.Sync.SupportedExtensions) == 0 {
		errs = append(errs, errors.New("SUPPORTED_EXTENSIONS must not be empty"))
	}
	if c.Sync.IndexingInterval < 0 {
		errs = append(errs, errors.New("INDEXING_INTERVAL_SECONDS must not be negative"))
	}
	if c.Sync.PollBackoff <= 0 {
		errs = append(errs, errors.New("POLL_BACKOFF_SECONDS must be positive"))
	}
	if c.RateLimitMax < 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive and max must not be negative"))
	}
	return errors.Join(errs...)
}

func listenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":" + envOr("PORT", "3000")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFirst(keys []string, fallback string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// normalizeFolder maps the root folder to "" as Dropbox expects
func normalizeFolder(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
