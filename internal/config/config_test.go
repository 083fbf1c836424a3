package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "rag:\n  collection: test_docs\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test_docs", cfg.RAG.Collection)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.True(t, cfg.Normalizer.StripMarkup)
	assert.True(t, cfg.Normalizer.CollapseSpaces)
	assert.True(t, cfg.Normalizer.CollapseBlank)
	assert.False(t, cfg.Normalizer.Lowercase)
	assert.Equal(t, "ollama", cfg.EmbedLLM.Provider)
}

func TestLoadConfigKeepsExplicitZeroOverlap(t *testing.T) {
	path := writeConfig(t, "rag:\n  chunk_size: 1000\n  chunk_overlap: 0\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 0, cfg.RAG.ChunkOverlap)
}

func TestLoadConfigKeepsDisabledNormalizerSteps(t *testing.T) {
	path := writeConfig(t, `normalizer:
  strip_markup: false
  collapse_spaces: false
  collapse_blank: false
  lowercase: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Normalizer.StripMarkup)
	assert.False(t, cfg.Normalizer.CollapseSpaces)
	assert.False(t, cfg.Normalizer.CollapseBlank)
	assert.False(t, cfg.Normalizer.Lowercase)
}

func TestLoadConfigSingleStepOverride(t *testing.T) {
	// disabling one step must not touch the others
	path := writeConfig(t, "normalizer:\n  strip_markup: false\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Normalizer.StripMarkup)
	assert.True(t, cfg.Normalizer.CollapseSpaces)
	assert.True(t, cfg.Normalizer.CollapseBlank)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "rag: [not a mapping\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
}
