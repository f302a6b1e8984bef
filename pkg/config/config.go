package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/pathogen-go/pkg/cache"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
)

// Config represents the complete configuration for a fuzzing campaign.
type Config struct {
	Campaign CampaignConfig `yaml:"campaign" validate:"required"`
}

// CampaignConfig holds the knobs of one campaign run.
type CampaignConfig struct {
	// Path to the stdin-driven target executable
	Program string `yaml:"program" validate:"required"`

	// Path to the input specification YAML file
	InputSpec string `yaml:"input_spec" validate:"required"`

	// Loop bounds
	MaxIterations      int `yaml:"max_iterations" validate:"gt=0"`
	InputsPerIteration int `yaml:"inputs_per_iteration" validate:"gt=0"`
	EliteSize          int `yaml:"elite_size" validate:"gt=0"`

	// Target size progression across iterations
	SizeProgression SizeProgressionConfig `yaml:"size_progression"`

	// Per-execution timeout for the target program
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gt=0"`

	// Parallel measurement limit within one iteration
	Concurrency int `yaml:"concurrency" validate:"gt=0"`

	Validation  ValidationConfig  `yaml:"validation"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	LLM         LLMConfig         `yaml:"llm" validate:"required"`
	Cache       cache.Config      `yaml:"cache"`

	// Directory for result JSON files
	OutputDir string `yaml:"output_dir"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
}

// SizeProgressionConfig defines the size band walked by the campaign.
type SizeProgressionConfig struct {
	StartSize int `yaml:"start_size" validate:"gt=0"`
	Increment int `yaml:"increment" validate:"gte=0"`
}

// ValidationConfig tunes execution-based validation.
type ValidationConfig struct {
	// Bounded regeneration attempts for candidates rejected as format errors
	MaxFormatRetries int `yaml:"max_format_retries" validate:"gte=0"`

	// When true a crashing target marks the candidate invalid. The default
	// (false) treats crashes as interesting, which is the historical behavior.
	CrashIsInvalid bool `yaml:"crash_is_invalid"`
}

// ConvergenceConfig enables optional early exit. Zero disables it: the loop
// always runs MaxIterations.
type ConvergenceConfig struct {
	StagnantIterations int `yaml:"stagnant_iterations" validate:"gte=0"`
}

// LLMConfig selects and tunes the generation oracle.
type LLMConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=anthropic openai groq"`
	Model    string `yaml:"model" validate:"required"`

	// API key; falls back to the provider's environment variable when empty
	APIKey string `yaml:"api_key"`

	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`

	// Oracle retry policy
	MaxRetries        int     `yaml:"max_retries" validate:"gte=0"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" validate:"gte=0"`
}

// Default returns a configuration with reasonable defaults. Program, InputSpec
// and the LLM block still need to be filled in by the caller.
func Default() *Config {
	return &Config{
		Campaign: CampaignConfig{
			MaxIterations:      10,
			InputsPerIteration: 15,
			EliteSize:          5,
			SizeProgression: SizeProgressionConfig{
				StartSize: 10,
				Increment: 15,
			},
			TimeoutSeconds: 30,
			Concurrency:    4,
			Validation: ValidationConfig{
				MaxFormatRetries: 2,
			},
			LLM: LLMConfig{
				Temperature:       0.7,
				MaxTokens:         4096,
				MaxRetries:        3,
				BackoffMultiplier: 2.0,
			},
			OutputDir: "results",
			LogLevel:  "INFO",
		},
	}
}

// Load reads a YAML config file on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	return nil
}
