package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_VectorStoreDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "memory", cfg.VectorStore.Backend)
	assert.Equal(t, 2, cfg.Graph.MaxHops)
	assert.Equal(t, 15, cfg.Graph.MaxExpandedChunks)
	assert.Equal(t, "none", cfg.Reranker.Mode)
	assert.Equal(t, 5, cfg.Reranker.RerankTopK)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestValidate_RejectsUnknownVectorStoreBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.VectorStore.Backend = "redis"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector_store.backend")
}

func TestValidate_PostgresBackendRequiresDSN(t *testing.T) {
	cfg := NewConfig()
	cfg.VectorStore.Backend = "postgres"
	cfg.VectorStore.PostgresDSN = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")
}

func TestValidate_PostgresBackendWithDSN_Passes(t *testing.T) {
	cfg := NewConfig()
	cfg.VectorStore.Backend = "postgres"
	cfg.VectorStore.PostgresDSN = "postgres://localhost/coderag"

	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeMaxHops(t *testing.T) {
	cfg := NewConfig()
	cfg.Graph.MaxHops = 6

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph.max_hops")
}

func TestValidate_RejectsOutOfRangeMaxExpandedChunks(t *testing.T) {
	cfg := NewConfig()
	cfg.Graph.MaxExpandedChunks = 0

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph.max_expanded_chunks")
}

func TestValidate_RejectsUnknownRerankerMode(t *testing.T) {
	cfg := NewConfig()
	cfg.Reranker.Mode = "crossfire"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reranker.mode")
}

func TestValidate_RejectsUnknownLLMProvider(t *testing.T) {
	cfg := NewConfig()
	cfg.LLM.Provider = "cohere"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestLoad_ProjectConfigOverridesVectorStoreBackend(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
vector_store:
  backend: postgres
  postgres_dsn: "postgres://localhost/coderag_test"
graph:
  max_hops: 3
reranker:
  mode: llm
llm:
  provider: openai
  model: gpt-4o-mini
`
	err := os.WriteFile(filepath.Join(tmpDir, ".coderag.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.VectorStore.Backend)
	assert.Equal(t, "postgres://localhost/coderag_test", cfg.VectorStore.PostgresDSN)
	assert.Equal(t, 3, cfg.Graph.MaxHops)
	assert.Equal(t, "llm", cfg.Reranker.Mode)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_EnvVarOverridesVectorStoreBackend(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CODERAG_VECTOR_STORE_BACKEND", "postgres")
	t.Setenv("CODERAG_POSTGRES_DSN", "postgres://localhost/coderag_env")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.VectorStore.Backend)
	assert.Equal(t, "postgres://localhost/coderag_env", cfg.VectorStore.PostgresDSN)
}

func TestLoad_EnvVarOverridesGraphMaxHops(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CODERAG_GRAPH_MAX_HOPS", "4")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Graph.MaxHops)
}

func TestLoad_EnvVarOverridesRerankerMode(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CODERAG_RERANKER_MODE", "bge")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "bge", cfg.Reranker.Mode)
}

func TestLoad_EnvVarOverridesLLMProviderAndModel(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CODERAG_LLM_PROVIDER", "openai")
	t.Setenv("CODERAG_LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}
