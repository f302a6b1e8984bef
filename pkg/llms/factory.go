package llms

import (
	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
)

// NewLLM creates an oracle client for the given provider name. The returned
// value satisfies core.LLM, so callers stay provider-agnostic.
func NewLLM(provider string, apiKey string, modelID core.ModelID) (core.LLM, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicLLM(apiKey, modelID)
	case "openai":
		return NewOpenAILLM(modelID, WithAPIKey(apiKey))
	case "groq":
		return NewGroqLLM(modelID, apiKey)
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unsupported oracle provider"),
			errors.Fields{"provider": provider})
	}
}
