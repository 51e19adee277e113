// Package config loads claridoc configuration from defaults, YAML files,
// .env files and CLARIDOC_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ingestion modes.
const (
	ModePerSegment = "per_segment"
	ModeBatched    = "batched"
	ModeReuseFirst = "reuse_first"
)

// Vocabulary write policies.
const (
	WriteImmediate = "immediate"
	WriteDeferred  = "deferred"
)

// Config is the complete claridoc configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Ingestion  IngestionConfig  `yaml:"ingestion" json:"ingestion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Chroma     ChromaConfig     `yaml:"chroma" json:"chroma"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Sessions   SessionsConfig   `yaml:"sessions" json:"sessions"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	PDF        PDFConfig        `yaml:"pdf" json:"pdf"`
}

// IngestionConfig configures metadata consolidation and chunking.
type IngestionConfig struct {
	// Mode is per_segment, batched or reuse_first.
	Mode string `yaml:"mode" json:"mode"`
	// BatchSize is the number of segments per extraction call in batched mode.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// WritePolicy is immediate (persist after every change) or deferred
	// (persist once when the document finishes).
	WritePolicy string `yaml:"write_policy" json:"write_policy"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// DedupThreshold is the cosine similarity at or above which a candidate
	// keyword counts as a duplicate of a known one.
	DedupThreshold float64 `yaml:"dedup_threshold" json:"dedup_threshold"`

	// DocType skips schema detection when set.
	DocType string `yaml:"doc_type" json:"doc_type"`

	// WordSegmentChars is the target segment size for .docx documents.
	WordSegmentChars int `yaml:"word_segment_chars" json:"word_segment_chars"`

	// LockTimeout bounds how long an ingestion waits for the document lock.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// RetrievalConfig configures hybrid retrieval and reranking.
type RetrievalConfig struct {
	// VectorBackend is hnsw (in process) or chroma.
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
	// LexicalBackend is bleve or sqlite.
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
	VectorTopK     int    `yaml:"vector_top_k" json:"vector_top_k"`
	LexicalTopK    int    `yaml:"lexical_top_k" json:"lexical_top_k"`
	DisplayTopN    int    `yaml:"display_top_n" json:"display_top_n"`
	Rerank         bool   `yaml:"rerank" json:"rerank"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is ollama or static.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the generation model.
type LLMConfig struct {
	// Provider is gemini or ollama.
	Provider          string  `yaml:"provider" json:"provider"`
	Model             string  `yaml:"model" json:"model"`
	APIKey            string  `yaml:"api_key" json:"-"`
	OllamaHost        string  `yaml:"ollama_host" json:"ollama_host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ChromaConfig configures the Chroma vector backend.
type ChromaConfig struct {
	URL              string `yaml:"url" json:"url"`
	CollectionPrefix string `yaml:"collection_prefix" json:"collection_prefix"`
}

// StorageConfig configures on-disk locations.
type StorageConfig struct {
	// DataDir holds vocabulary files and lock files.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// UploadDir holds uploaded documents while they are ingested.
	UploadDir string `yaml:"upload_dir" json:"upload_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host             string   `yaml:"host" json:"host"`
	Port             int      `yaml:"port" json:"port"`
	LogLevel         string   `yaml:"log_level" json:"log_level"`
	MaxUploadBytes   int64    `yaml:"max_upload_bytes" json:"max_upload_bytes"`
	AllowedFileTypes []string `yaml:"allowed_file_types" json:"allowed_file_types"`
	// WatchDir enables the drop-folder watcher when set.
	WatchDir string `yaml:"watch_dir" json:"watch_dir"`
}

// SessionsConfig configures in-memory session management.
type SessionsConfig struct {
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`
}

// QueryConfig configures query sanitization.
type QueryConfig struct {
	MaxLength int `yaml:"max_length" json:"max_length"`
}

// PDFConfig configures the PDF loader.
type PDFConfig struct {
	LicenseKey string `yaml:"license_key" json:"-"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Version: 1,
		Ingestion: IngestionConfig{
			Mode:             ModeBatched,
			BatchSize:        5,
			WritePolicy:      WriteImmediate,
			ChunkSize:        800,
			ChunkOverlap:     100,
			DedupThreshold:   0.85,
			WordSegmentChars: 3000,
			LockTimeout:      30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			VectorBackend:  "hnsw",
			LexicalBackend: "bleve",
			VectorTopK:     5,
			LexicalTopK:    3,
			DisplayTopN:    3,
			Rerank:         true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-2.0-flash",
			OllamaHost:        "http://localhost:11434",
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Chroma: ChromaConfig{
			URL:              "http://localhost:8000",
			CollectionPrefix: "claridoc",
		},
		Storage: StorageConfig{
			DataDir:   dataDir,
			UploadDir: filepath.Join(dataDir, "uploads"),
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			LogLevel:         "info",
			MaxUploadBytes:   10 * 1024 * 1024,
			AllowedFileTypes: []string{".pdf", ".docx", ".txt"},
		},
		Sessions: SessionsConfig{
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
			MaxSessions:     100,
		},
		Query: QueryConfig{
			MaxLength: 1000,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".claridoc", "data")
	}
	return filepath.Join(home, ".claridoc", "data")
}

// GetUserConfigPath returns the user configuration file path, following XDG:
//   - $XDG_CONFIG_HOME/claridoc/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/claridoc/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claridoc", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "claridoc", "config.yaml")
	}
	return filepath.Join(home, ".config", "claridoc", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// Sources are applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/claridoc/config.yaml)
//  3. Project config (.claridoc.yaml in dir)
//  4. .env in dir (only fills variables not already set)
//  5. Environment variables (CLARIDOC_*, GEMINI_API_KEY, UNIDOC_LICENSE_KEY)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .claridoc.yaml or .claridoc.yml from dir if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".claridoc.yaml", ".claridoc.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes a YAML file over the current values. Keys absent from
// the file keep whatever the lower-precedence sources set.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLARIDOC_INGESTION_MODE"); v != "" {
		c.Ingestion.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingestion.BatchSize = n
		}
	}
	if v := os.Getenv("CLARIDOC_WRITE_POLICY"); v != "" {
		c.Ingestion.WritePolicy = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_DEDUP_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.Ingestion.DedupThreshold = f
		}
	}
	if v := os.Getenv("CLARIDOC_DOC_TYPE"); v != "" {
		c.Ingestion.DocType = v
	}
	if v := os.Getenv("CLARIDOC_VECTOR_BACKEND"); v != "" {
		c.Retrieval.VectorBackend = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_LEXICAL_BACKEND"); v != "" {
		c.Retrieval.LexicalBackend = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CLARIDOC_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("CLARIDOC_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("CLARIDOC_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CLARIDOC_CHROMA_URL"); v != "" {
		c.Chroma.URL = v
	}
	if v := os.Getenv("CLARIDOC_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CLARIDOC_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("CLARIDOC_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("UNIDOC_LICENSE_KEY"); v != "" {
		c.PDF.LicenseKey = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Ingestion.Mode {
	case ModePerSegment, ModeBatched, ModeReuseFirst:
	default:
		return fmt.Errorf("ingestion.mode must be 'per_segment', 'batched', or 'reuse_first', got %q", c.Ingestion.Mode)
	}
	switch c.Ingestion.WritePolicy {
	case WriteImmediate, WriteDeferred:
	default:
		return fmt.Errorf("ingestion.write_policy must be 'immediate' or 'deferred', got %q", c.Ingestion.WritePolicy)
	}
	if c.Ingestion.BatchSize < 1 {
		return fmt.Errorf("ingestion.batch_size must be at least 1, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion.chunk_size must be positive, got %d", c.Ingestion.ChunkSize)
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap must be in [0, chunk_size), got %d", c.Ingestion.ChunkOverlap)
	}
	if c.Ingestion.DedupThreshold < 0 || c.Ingestion.DedupThreshold > 1 {
		return fmt.Errorf("ingestion.dedup_threshold must be between 0 and 1, got %f", c.Ingestion.DedupThreshold)
	}

	if !oneOf(c.Retrieval.VectorBackend, "hnsw", "chroma") {
		return fmt.Errorf("retrieval.vector_backend must be 'hnsw' or 'chroma', got %q", c.Retrieval.VectorBackend)
	}
	if !oneOf(c.Retrieval.LexicalBackend, "bleve", "sqlite") {
		return fmt.Errorf("retrieval.lexical_backend must be 'bleve' or 'sqlite', got %q", c.Retrieval.LexicalBackend)
	}
	if c.Retrieval.VectorTopK < 0 || c.Retrieval.LexicalTopK < 0 || c.Retrieval.DisplayTopN < 0 {
		return fmt.Errorf("retrieval top-k values must be non-negative")
	}

	if !oneOf(c.Embeddings.Provider, "ollama", "static") {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %q", c.Embeddings.Provider)
	}
	if !oneOf(c.LLM.Provider, "gemini", "ollama") {
		return fmt.Errorf("llm.provider must be 'gemini' or 'ollama', got %q", c.LLM.Provider)
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.requests_per_second must be non-negative, got %f", c.LLM.RequestsPerSecond)
	}

	if !oneOf(strings.ToLower(c.Server.LogLevel), "debug", "info", "warn", "error") {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Query.MaxLength <= 0 {
		return fmt.Errorf("query.max_length must be positive, got %d", c.Query.MaxLength)
	}

	return nil
}

// VocabularyDir is where vocabulary files live.
func (c *Config) VocabularyDir() string {
	return filepath.Join(c.Storage.DataDir, "vocabulary")
}

// LockDir is where per-document lock files live.
func (c *Config) LockDir() string {
	return filepath.Join(c.Storage.DataDir, "locks")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
