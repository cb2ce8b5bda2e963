package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hashed", cfg.Embedder.Type)
	assert.Equal(t, 512, cfg.Embedder.Hashed.Dimensions)
	assert.Equal(t, "openai", cfg.Generator.Type)
	assert.Equal(t, 150, cfg.Chunker.WordsPerChunk)
	assert.Equal(t, 1000, cfg.Index.BatchSize)
	assert.Equal(t, 5, cfg.Index.Neighbors)
	assert.Equal(t, "euclidean", cfg.Index.Metric)
	assert.Equal(t, "memory", cfg.Index.Store)
	assert.Equal(t, 5, cfg.Assembler.KPerCorpus)
	require.NotNil(t, cfg.Assembler.MaxChars)
	assert.Equal(t, 5000, *cfg.Assembler.MaxChars)
	assert.Equal(t, 3, cfg.Flashcards.StartPage)
	assert.Equal(t, 1, cfg.Extract.StartPage)
	assert.NoError(t, cfg.Validate())
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("STUDYRAG_QDRANT", "qdrant.internal:6334")
	t.Setenv("STUDYRAG_EMPTY", "")

	data := []byte(`
index:
  store: qdrant
  metric: cosine
  qdrant:
    addr: ${STUDYRAG_QDRANT}
    api_key: ${STUDYRAG_EMPTY:-fallback-key}
assembler:
  context: "${STUDYRAG_UNSET:-Intro to Psychology}"
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal:6334", cfg.Index.Qdrant.Addr)
	assert.Equal(t, "fallback-key", cfg.Index.Qdrant.APIKey)
	assert.Equal(t, "studyrag", cfg.Index.Qdrant.CollectionPrefix)
	assert.Equal(t, "Intro to Psychology", cfg.Assembler.Context)
}

func TestParse_OpenAIDefaults(t *testing.T) {
	cfg, err := Parse([]byte("embedder:\n  type: openai\ngenerator:\n  type: gemini\n"))
	require.NoError(t, err)

	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 5, cfg.Embedder.OpenAI.MaxRetries)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.Gemini.APIKeyEnv)
	assert.Nil(t, cfg.Generator.OpenAI)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad metric", "index:\n  metric: manhattan\n"},
		{"bad store", "index:\n  store: redis\n"},
		{"qdrant without addr", "index:\n  store: qdrant\n"},
		{"bad embedder", "embedder:\n  type: word2vec\n"},
		{"bad generator", "generator:\n  type: llama\n"},
		{"bad env", "logging:\n  env: staging\n"},
		{"inverted pages", "extract:\n  start_page: 5\n  end_page: 2\n"},
		{"negative budget", "assembler:\n  max_chars: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_ZeroBudgetIsKept(t *testing.T) {
	cfg, err := Parse([]byte("assembler:\n  max_chars: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Assembler.MaxChars)
	assert.Equal(t, 0, *cfg.Assembler.MaxChars)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Assembler.Context = "CS201 Data Structures"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestAPIKey(t *testing.T) {
	t.Setenv("STUDYRAG_TEST_KEY", "sk-test")
	key, err := APIKey("STUDYRAG_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = APIKey("STUDYRAG_TEST_MISSING")
	assert.Error(t, err)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte("chunker:\n  words_per_chunk: 42\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, 42, cfg.Chunker.WordsPerChunk)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "studyrag", "config.yaml"), path)
	assert.FileExists(t, path)
}
