package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/llms/openai"
)

// OpenAILLM implements the core.LLM interface for OpenAI-compatible chat APIs.
type OpenAILLM struct {
	*core.BaseLLM
	apiKey string
}

// OpenAIOption is a functional option for configuring OpenAI provider.
type OpenAIOption func(*OpenAIConfig)

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	baseURL string
	path    string
	apiKey  string
	headers map[string]string
	timeout time.Duration
}

func WithAPIKey(apiKey string) OpenAIOption {
	return func(c *OpenAIConfig) { c.apiKey = apiKey }
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIConfig) { c.baseURL = baseURL }
}

func WithOpenAIPath(path string) OpenAIOption {
	return func(c *OpenAIConfig) { c.path = path }
}

func WithOpenAITimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIConfig) { c.timeout = timeout }
}

func WithHeader(key, value string) OpenAIOption {
	return func(c *OpenAIConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// NewOpenAILLM creates a new OpenAILLM instance with functional options.
func NewOpenAILLM(modelID core.ModelID, opts ...OpenAIOption) (*OpenAILLM, error) {
	config := &OpenAIConfig{
		baseURL: "https://api.openai.com", // default
		path:    "/v1/chat/completions",
		timeout: 60 * time.Second,
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		opt(config)
	}

	// Environment variable fallback for API key
	if config.apiKey == "" {
		config.apiKey = os.Getenv("OPENAI_API_KEY")
	}

	// API key validation - required for official OpenAI API endpoint
	if config.apiKey == "" && config.baseURL == "https://api.openai.com" {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "OpenAI API key is required for api.openai.com"),
			errors.Fields{"env_var": "OPENAI_API_KEY"})
	}

	endpointCfg := &core.EndpointConfig{
		BaseURL:    config.baseURL,
		Path:       config.path,
		Headers:    config.headers,
		TimeoutSec: int(config.timeout.Seconds()),
	}

	// Set authorization header only if API key is provided
	if config.apiKey != "" {
		endpointCfg.Headers["Authorization"] = "Bearer " + config.apiKey
	}
	endpointCfg.Headers["Content-Type"] = "application/json"

	capabilities := []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityChat,
		core.CapabilityJSON,
	}

	baseLLM := core.NewBaseLLM("openai", modelID, capabilities, endpointCfg)

	return &OpenAILLM{
		BaseLLM: baseLLM,
		apiKey:  config.apiKey,
	}, nil
}

// NewGroqLLM creates an OpenAI-compatible client pointed at Groq's API.
func NewGroqLLM(modelID core.ModelID, apiKey string, opts ...OpenAIOption) (*OpenAILLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "Groq API key is required"),
			errors.Fields{"env_var": "GROQ_API_KEY"})
	}

	defaultOpts := []OpenAIOption{
		WithAPIKey(apiKey),
		WithOpenAIBaseURL("https://api.groq.com"),
		WithOpenAIPath("/openai/v1/chat/completions"),
	}

	// Merge with user options (user options take precedence)
	allOpts := append(defaultOpts, opts...)

	llm, err := NewOpenAILLM(modelID, allOpts...)
	if err != nil {
		return nil, err
	}

	// Override provider name for clarity
	endpointCfg := llm.GetEndpointConfig()
	capabilities := llm.Capabilities()
	newBaseLLM := core.NewBaseLLM("groq", modelID, capabilities, endpointCfg)

	return &OpenAILLM{
		BaseLLM: newBaseLLM,
		apiKey:  llm.apiKey,
	}, nil
}

// Generate implements the core.LLM interface.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	request := &openai.ChatCompletionRequest{
		Model: o.ModelID(),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens:   &opts.MaxTokens,
		Temperature: &opts.Temperature,
	}

	if opts.TopP > 0 {
		request.TopP = &opts.TopP
	}
	if len(opts.Stop) > 0 {
		request.Stop = opts.Stop
	}

	response, err := o.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, errors.New(errors.OracleMalformedResponse, "no choices returned from API")
	}

	usage := &core.TokenInfo{
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
		TotalTokens:      response.Usage.TotalTokens,
	}

	return &core.LLMResponse{
		Content: response.Choices[0].Message.Content,
		Usage:   usage,
		Metadata: map[string]interface{}{
			"finish_reason": response.Choices[0].FinishReason,
			"id":            response.ID,
			"model":         response.Model,
		},
	}, nil
}

func (o *OpenAILLM) makeRequest(ctx context.Context, request *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to marshal request")
	}

	endpoint := o.GetEndpointConfig()
	url := endpoint.BaseURL + endpoint.Path

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to create request")
	}

	// Set headers
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := o.GetHTTPClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.OracleUnavailable, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.OracleUnavailable, "failed to read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.WithFields(
			errors.New(errors.OracleRateLimited, "rate limited by provider"),
			errors.Fields{"provider": o.ProviderName()})
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp openai.ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, errors.WithFields(
				errors.New(errors.OracleUnavailable, "API request failed"),
				errors.Fields{"status": resp.StatusCode, "body": string(body)})
		}
		return nil, errors.WithFields(
			errors.New(errors.OracleUnavailable, errorResp.Error.Message),
			errors.Fields{"type": errorResp.Error.Type, "code": errorResp.Error.Code})
	}

	var response openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, errors.OracleMalformedResponse, "failed to parse response")
	}

	return &response, nil
}
