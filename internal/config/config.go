package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig points at an OpenAI-compatible or Ollama endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// RAGConfig controls chunking and retrieval behaviour.
type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	Collection    string `yaml:"collection"`
	EncryptionKey string `yaml:"encryption_key"`
}

// NormalizerConfig toggles the individual cleaning steps.
type NormalizerConfig struct {
	StripMarkup    bool `yaml:"strip_markup"`
	CollapseSpaces bool `yaml:"collapse_spaces"`
	CollapseBlank  bool `yaml:"collapse_blank"`
	Lowercase      bool `yaml:"lowercase"`
}

// StoreConfig locates the on-disk document store and vector database.
type StoreConfig struct {
	DocumentPath string `yaml:"document_path"`
	VectorDBPath string `yaml:"vectordb_path"`
	InMemory     bool   `yaml:"in_memory"`
}

// DatabaseConfig configures the optional Postgres segment archive.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Debug   bool   `yaml:"debug"`
}

type Config struct {
	RAG        RAGConfig        `yaml:"rag"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	EmbedLLM   LLMConfig        `yaml:"embed_llm"`
	ChatLLM    LLMConfig        `yaml:"chat_llm"`
}

// LoadConfig reads the config file, decoding it over the defaults so that
// absent keys fall back while explicit values, zero included, always win.
// A missing file is an error; callers decide whether defaults alone are
// acceptable.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a usable offline configuration.
func Default() *Config {
	return &Config{
		RAG: RAGConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
			TopK:         5,
			Collection:   "policy_documents",
		},
		Normalizer: NormalizerConfig{
			StripMarkup:    true,
			CollapseSpaces: true,
			CollapseBlank:  true,
		},
		Store: StoreConfig{
			DocumentPath: "./document_store",
			VectorDBPath: "./chromemdb",
		},
		EmbedLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		ChatLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
		},
	}
}
