package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
	// File receives chat UI logs, since the UI owns the terminal.
	File string `yaml:"file"`
}

// ExtractConfig selects the page range read from paginated documents.
type ExtractConfig struct {
	StartPage int `yaml:"start_page"`
	EndPage   int `yaml:"end_page"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	WordsPerChunk int `yaml:"words_per_chunk"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Addr             string `yaml:"addr"`
	APIKey           string `yaml:"api_key"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

// IndexConfig configures fitting and the nearest-neighbour store.
type IndexConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Neighbors int           `yaml:"neighbors"`
	Metric    string        `yaml:"metric"`
	Store     string        `yaml:"store"`
	Qdrant    *QdrantConfig `yaml:"qdrant,omitempty"`
}

// HashedEmbedderConfig configures the offline hashing embedder.
type HashedEmbedderConfig struct {
	Dimensions int `yaml:"dimensions"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxRetries        int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Hashed *HashedEmbedderConfig `yaml:"hashed,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// OpenAIGeneratorConfig configures chat completions.
type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	VisionModel string  `yaml:"vision_model"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Temperature float32 `yaml:"temperature"`
}

// GeminiGeneratorConfig configures the Gemini API.
type GeminiGeneratorConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// GeneratorConfig selects the answer generation service.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
	Gemini *GeminiGeneratorConfig `yaml:"gemini,omitempty"`
}

// AssemblerConfig bounds the prompt built for each question. An explicit
// max_chars of 0 leaves chunks out of the prompt; unset means 5000.
type AssemblerConfig struct {
	KPerCorpus int    `yaml:"k_per_corpus"`
	MaxChars   *int   `yaml:"max_chars,omitempty"`
	Context    string `yaml:"context"`
}

// FlashcardsConfig controls flashcard prompt construction.
type FlashcardsConfig struct {
	StartPage int `yaml:"start_page"`
	MaxChars  int `yaml:"max_chars"`
}

// SummarizerConfig configures the chat header summaries.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_sec"`
}

// IngestConfig controls parallel document loading.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Extract    ExtractConfig    `yaml:"extract"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Index      IndexConfig      `yaml:"index"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Assembler  AssemblerConfig  `yaml:"assembler"`
	Flashcards FlashcardsConfig `yaml:"flashcards"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	HTTP       HTTPConfig       `yaml:"http"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML after expanding ${VAR} and ${VAR:-default}, then
// applies defaults and validates.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/studyrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/studyrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for correctness.
func (c *AppConfig) Validate() error {
	switch c.Logging.Env {
	case "", "dev", "local", "prod":
	default:
		return fmt.Errorf("logging.env must be dev, local or prod, got %q", c.Logging.Env)
	}
	switch c.Index.Metric {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("index.metric must be \"euclidean\" or \"cosine\", got %q", c.Index.Metric)
	}
	switch c.Index.Store {
	case "memory":
	case "qdrant":
		if c.Index.Qdrant == nil || c.Index.Qdrant.Addr == "" {
			return errors.New("index.qdrant.addr is required for the qdrant store")
		}
	default:
		return fmt.Errorf("index.store must be \"memory\" or \"qdrant\", got %q", c.Index.Store)
	}
	switch c.Embedder.Type {
	case "hashed", "openai":
	default:
		return fmt.Errorf("embedder.type must be \"hashed\" or \"openai\", got %q", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "openai", "gemini":
	default:
		return fmt.Errorf("generator.type must be \"openai\" or \"gemini\", got %q", c.Generator.Type)
	}
	if c.Assembler.MaxChars != nil && *c.Assembler.MaxChars < 0 {
		return fmt.Errorf("assembler.max_chars must not be negative, got %d", *c.Assembler.MaxChars)
	}
	if c.Extract.EndPage > 0 && c.Extract.EndPage < c.Extract.StartPage {
		return fmt.Errorf("extract.end_page %d is before start_page %d", c.Extract.EndPage, c.Extract.StartPage)
	}
	return nil
}

// APIKey reads the key named by an api_key_env setting.
func APIKey(envName string) (string, error) {
	key := os.Getenv(envName)
	if key == "" {
		return "", fmt.Errorf("missing API key in env %s", envName)
	}
	return key, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studyrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Logging:   LoggingConfig{Env: "dev", Level: "info"},
		Embedder:  EmbedderConfig{Type: "hashed"},
		Generator: GeneratorConfig{Type: "openai"},
		Index:     IndexConfig{Store: "memory"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Extract.StartPage <= 0 {
		cfg.Extract.StartPage = 1
	}
	if cfg.Chunker.WordsPerChunk <= 0 {
		cfg.Chunker.WordsPerChunk = 150
	}
	if cfg.Index.BatchSize <= 0 {
		cfg.Index.BatchSize = 1000
	}
	if cfg.Index.Neighbors <= 0 {
		cfg.Index.Neighbors = 5
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "euclidean"
	}
	if cfg.Index.Store == "" {
		cfg.Index.Store = "memory"
	}
	if cfg.Index.Store == "qdrant" && cfg.Index.Qdrant != nil && cfg.Index.Qdrant.CollectionPrefix == "" {
		cfg.Index.Qdrant.CollectionPrefix = "studyrag"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashed"
	}
	switch cfg.Embedder.Type {
	case "hashed":
		if cfg.Embedder.Hashed == nil {
			cfg.Embedder.Hashed = &HashedEmbedderConfig{}
		}
		if cfg.Embedder.Hashed.Dimensions <= 0 {
			cfg.Embedder.Hashed.Dimensions = 512
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs <= 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		o := cfg.Generator.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.VisionModel == "" {
			o.VisionModel = "gpt-4o"
		}
		if o.TimeoutSecs <= 0 {
			o.TimeoutSecs = 120
		}
	case "gemini":
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiGeneratorConfig{}
		}
		if cfg.Generator.Gemini.APIKeyEnv == "" {
			cfg.Generator.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Generator.Gemini.Model == "" {
			cfg.Generator.Gemini.Model = "gemini-2.0-flash"
		}
	}

	if cfg.Assembler.KPerCorpus <= 0 {
		cfg.Assembler.KPerCorpus = 5
	}
	if cfg.Assembler.MaxChars == nil {
		maxChars := 5000
		cfg.Assembler.MaxChars = &maxChars
	}
	if cfg.Flashcards.StartPage <= 0 {
		cfg.Flashcards.StartPage = 3
	}
	if cfg.Flashcards.MaxChars <= 0 {
		cfg.Flashcards.MaxChars = 5000
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeoutSec <= 0 {
		cfg.HTTP.ReadTimeoutSec = 30
	}
	if cfg.HTTP.WriteTimeoutSec <= 0 {
		cfg.HTTP.WriteTimeoutSec = 180
	}
	if cfg.HTTP.ShutdownSec <= 0 {
		cfg.HTTP.ShutdownSec = 10
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 4
	}
}
