package faqrag

import (
	"fmt"

	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/ai/goopenai"
	"github.com/poiesic/faqrag/ai/openai"
)

// ProviderFactory creates an AI provider from a model service configuration.
type ProviderFactory func(config *ai.Config) (ai.Provider, error)

// NewProvider creates a provider for config.Backend.
// The langchaingo backend is used when none is set.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if config == nil {
		config = ai.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Backend {
	case ai.BackendLangChain:
		return openai.NewProvider(config)
	case ai.BackendGoOpenAI:
		return goopenai.NewProvider(config)
	default:
		return nil, fmt.Errorf("unsupported backend %q", config.Backend)
	}
}
