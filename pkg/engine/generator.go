package engine

import (
	"context"
	"math"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/logging"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

// exemplarLimit caps how many elite entries are shown to the model per
// request. More than a handful just burns tokens without steering generation.
const exemplarLimit = 5

// Generator asks the language model for candidate inputs and parses its
// responses. Transient model failures are retried with exponential backoff;
// after the retry budget is exhausted the generator returns whatever it
// collected, possibly nothing, and lets the campaign proceed with a short
// batch.
type Generator struct {
	llm         core.LLM
	spec        *spec.Specification
	system      string
	maxRetries  int
	multiplier  float64
	backoffBase time.Duration
	temperature float64
	maxTokens   int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGenerationRetries sets how many times a failed model request is retried.
func WithGenerationRetries(n int) GeneratorOption {
	return func(g *Generator) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithBackoffMultiplier sets the exponential backoff growth factor.
func WithBackoffMultiplier(m float64) GeneratorOption {
	return func(g *Generator) {
		if m > 0 {
			g.multiplier = m
		}
	}
}

// WithBackoffBase sets the first retry delay.
func WithBackoffBase(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.backoffBase = d
		}
	}
}

// WithSamplingParams sets the temperature and completion budget used for
// every generation request.
func WithSamplingParams(temperature float64, maxTokens int) GeneratorOption {
	return func(g *Generator) {
		if temperature > 0 {
			g.temperature = temperature
		}
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
	}
}

// NewGenerator creates a Generator for the given model, target program and
// input specification.
func NewGenerator(llm core.LLM, programPath, metric string, sp *spec.Specification, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:         llm,
		spec:        sp,
		system:      buildSystemPrompt(programPath, metric, sp),
		maxRetries:  3,
		multiplier:  2.0,
		backoffBase: time.Second,
		temperature: 0.7,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate requests up to count candidates of roughly targetSize semantic
// units. Elites, when present, are embedded as exemplars. The returned slice
// may be shorter than count, including empty, when the model keeps failing or
// keeps producing unparseable output. A non-nil error is returned only for
// context cancellation.
func (g *Generator) Generate(ctx context.Context, generation, targetSize, count int, elites []core.EliteEntry) ([]core.Candidate, error) {
	logger := logging.GetLogger()
	prompt := buildGenerationPrompt(g.system, g.spec, count, targetSize, elites)

	var collected []core.Candidate
	seen := make(map[string]struct{})

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := errors.CheckContext(ctx, "candidate generation"); err != nil {
			return collected, err
		}

		if attempt > 0 {
			backoff := time.Duration(float64(g.backoffBase) *
				math.Pow(g.multiplier, float64(attempt-1)))
			logger.Debug(ctx, "Retrying generation (attempt %d/%d) after %v",
				attempt, g.maxRetries, backoff)
			select {
			case <-ctx.Done():
				return collected, errors.Wrap(ctx.Err(), errors.Canceled,
					"context canceled during generation backoff")
			case <-time.After(backoff):
			}
		}

		resp, err := g.llm.Generate(ctx, prompt,
			core.WithTemperature(g.temperature),
			core.WithMaxTokens(g.maxTokens),
		)
		if err != nil {
			if errors.CodeOf(err) == errors.Canceled {
				return collected, err
			}
			logger.Warn(ctx, "Model request failed: %v", err)
			continue
		}

		if resp.Usage != nil {
			logger.Debug(logging.WithTokenInfo(ctx, &logging.TokenInfo{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}), "Generation request complete")
		}

		for _, text := range parseCandidates(resp.Content) {
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			collected = append(collected, core.NewCandidate(text, targetSize, generation))
			if len(collected) >= count {
				return collected, nil
			}
		}

		if len(collected) >= count {
			return collected, nil
		}
		// A short or empty parse consumes a retry attempt. Ask again for the
		// remainder rather than discarding what was already collected.
		prompt = buildGenerationPrompt(g.system, g.spec, count-len(collected), targetSize, elites)
	}

	if len(collected) == 0 {
		logger.Warn(ctx, "Generation produced no candidates after %d attempts", g.maxRetries+1)
	}
	return collected, nil
}
