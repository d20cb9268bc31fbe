package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AI: AIConfig{
			APIKey:       "sk-test",
			EmbeddingDim: 1536,
		},
		Index: IndexConfig{
			Endpoint: "localhost:19530",
		},
		Processing: ProcessingConfig{
			MaxChunkSize: 2000,
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.AI.APIKey = "  "

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.apiKey")
}

func TestValidateRequiresIndexEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Endpoint = ""

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.endpoint")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.apiKey")
	assert.Contains(t, err.Error(), "index.endpoint")
	assert.Contains(t, err.Error(), "ai.embeddingDim")
	assert.Contains(t, err.Error(), "processing.maxChunkSize")
}
