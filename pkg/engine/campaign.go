package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/logging"
)

// Params holds the knobs the campaign loop runs under.
type Params struct {
	MaxIterations      int
	InputsPerIteration int
	EliteSize          int
	Band               core.SizeBand
	Concurrency        int

	// MaxFormatRetries bounds how many regeneration rounds replace invalid
	// candidates within a single iteration.
	MaxFormatRetries int

	// StagnantIterations stops the loop early when the best score has not
	// improved for this many consecutive iterations. Zero disables the check.
	StagnantIterations int
}

func (p Params) validate() error {
	if p.MaxIterations <= 0 {
		return errors.New(errors.InvalidInput, "max iterations must be positive")
	}
	if p.InputsPerIteration <= 0 {
		return errors.New(errors.InvalidInput, "inputs per iteration must be positive")
	}
	if p.EliteSize <= 0 {
		return errors.New(errors.InvalidInput, "elite size must be positive")
	}
	if p.Band.Start <= 0 {
		return errors.New(errors.InvalidInput, "size band start must be positive")
	}
	if p.Band.Increment < 0 {
		return errors.New(errors.InvalidInput, "size band increment must not be negative")
	}
	return nil
}

// Campaign drives the full evolutionary loop: generate candidates at the
// current target size, validate and measure them in parallel, merge survivors
// into the elite store, then advance the size band. The loop advances exactly
// one band position per iteration no matter how the iteration went, so a run
// of oracle failures cannot stall the progression.
type Campaign struct {
	id        string
	params    Params
	generator *Generator
	scorer    *Scorer
	validator *Validator
	elites    *EliteStore
}

// NewCampaign wires a campaign from its collaborators.
func NewCampaign(params Params, gen *Generator, scorer *Scorer, validator *Validator) (*Campaign, error) {
	if params.Concurrency <= 0 {
		params.Concurrency = 4
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Campaign{
		id:        uuid.NewString(),
		params:    params,
		generator: gen,
		scorer:    scorer,
		validator: validator,
		elites:    NewEliteStore(params.EliteSize),
	}, nil
}

// ID returns the campaign identifier used in logs and reports.
func (c *Campaign) ID() string {
	return c.id
}

// Run executes the campaign to completion or cancellation. On cancellation
// the result holds everything merged before the cancellation point, alongside
// a Canceled error.
func (c *Campaign) Run(ctx context.Context) (*core.CampaignResult, error) {
	ctx = logging.WithCampaignID(ctx, c.id)
	logger := logging.GetLogger()
	start := time.Now()

	result := &core.CampaignResult{
		CampaignID: c.id,
		Stats:      make([]core.IterationStats, 0, c.params.MaxIterations),
	}

	stagnant := 0
	var lastBest int64

	for iter := 0; iter < c.params.MaxIterations; iter++ {
		if err := errors.CheckContext(ctx, "campaign iteration"); err != nil {
			return c.finish(result, start), err
		}

		targetSize := c.params.Band.At(iter)
		logger.Info(ctx, "Iteration %d/%d, target size %d",
			iter+1, c.params.MaxIterations, targetSize)

		stats, err := c.runIteration(ctx, iter, targetSize)
		result.Stats = append(result.Stats, stats)
		result.Iterations = iter + 1
		if err != nil {
			return c.finish(result, start), err
		}

		best := c.elites.TopScore()
		if c.params.StagnantIterations > 0 {
			if best > lastBest {
				stagnant = 0
			} else {
				stagnant++
			}
			if stagnant >= c.params.StagnantIterations {
				logger.Info(ctx, "Converged after %d stagnant iterations", stagnant)
				break
			}
		}
		lastBest = best
	}

	return c.finish(result, start), nil
}

func (c *Campaign) finish(result *core.CampaignResult, start time.Time) *core.CampaignResult {
	result.Elites = c.elites.All()
	result.TotalDuration = time.Since(start)
	return result
}

// runIteration performs one generate/validate/measure/merge cycle. The
// returned error is non-nil only for cancellation; all per-candidate failures
// are absorbed into the iteration statistics.
func (c *Campaign) runIteration(ctx context.Context, iter, targetSize int) (core.IterationStats, error) {
	logger := logging.GetLogger()
	iterStart := time.Now()
	stats := core.IterationStats{Iteration: iter + 1, TargetSize: targetSize}
	defer func() { stats.Duration = time.Since(iterStart) }()

	exemplars := c.elites.TopK(exemplarLimit)
	candidates, err := c.generator.Generate(ctx, iter, targetSize, c.params.InputsPerIteration, exemplars)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(candidates)
	if len(candidates) < c.params.InputsPerIteration {
		stats.OracleFailures++
	}
	if len(candidates) == 0 {
		logger.Warn(ctx, "Iteration %d produced no candidates, advancing size band", iter+1)
		return stats, nil
	}

	invalid := c.evaluateBatch(ctx, candidates, &stats)
	if err := errors.CheckContext(ctx, "candidate evaluation"); err != nil {
		return stats, err
	}

	// Invalid candidates are dropped and replaced through bounded
	// regeneration rounds. Replacements go through the same pipeline.
	for round := 0; round < c.params.MaxFormatRetries && invalid > 0; round++ {
		logger.Debug(ctx, "Regenerating %d replacement candidates (round %d)", invalid, round+1)
		replacements, err := c.generator.Generate(ctx, iter, targetSize, invalid, exemplars)
		if err != nil {
			return stats, err
		}
		if len(replacements) == 0 {
			break
		}
		stats.Generated += len(replacements)
		invalid = c.evaluateBatch(ctx, replacements, &stats)
		if err := errors.CheckContext(ctx, "candidate evaluation"); err != nil {
			return stats, err
		}
	}

	stats.BestScore = c.elites.TopScore()
	logger.Info(ctx, "Iteration %d complete: %d measured, best score %d",
		iter+1, stats.Measured, stats.BestScore)
	return stats, nil
}

type evaluation struct {
	result   core.MeasurementResult
	validity core.Validity
	err      error
}

// evaluateBatch validates and measures candidates in parallel, merges valid
// measurements into the elite store, and returns how many candidates were
// rejected as invalid. The elite store is only written from this goroutine,
// after the pool has drained.
func (c *Campaign) evaluateBatch(ctx context.Context, candidates []core.Candidate, stats *core.IterationStats) int {
	evals := make([]evaluation, len(candidates))

	p := pool.New().WithMaxGoroutines(c.params.Concurrency)
	for i, cand := range candidates {
		i, cand := i, cand
		p.Go(func() {
			evals[i] = c.evaluate(ctx, cand)
		})
	}
	p.Wait()

	invalid := 0
	for _, ev := range evals {
		if ev.err != nil {
			continue
		}
		if !ev.validity.Valid {
			invalid++
			stats.RecordFailure(core.FailureInvalidCandidate)
			continue
		}
		stats.Validated++
		if ev.result.Failure != core.FailureNone {
			stats.RecordFailure(ev.result.Failure)
			continue
		}
		stats.Measured++
		if ev.result.ExitCode != 0 {
			stats.Crashes++
		}
		c.elites.Offer(ev.result.Candidate, ev.result.Score)
		// Cache only scores that survived classification, so a later cache
		// hit can safely skip the validator.
		c.scorer.Commit(ctx, ev.result.Candidate, ev.result.Score)
	}
	return invalid
}

// evaluate runs the per-candidate pipeline: size check, one instrumented
// execution, then validity classification against that same execution.
func (c *Campaign) evaluate(ctx context.Context, cand core.Candidate) evaluation {
	if v := c.validator.CheckSize(cand); !v.Valid {
		return evaluation{
			result:   core.MeasurementResult{Candidate: cand, Failure: core.FailureInvalidCandidate},
			validity: v,
		}
	}

	mr, res, err := c.scorer.Measure(ctx, cand)
	if err != nil {
		return evaluation{err: err}
	}
	if res == nil {
		// Cache hit. The score was produced by an earlier accepted run.
		return evaluation{result: mr, validity: core.Validity{Valid: true}}
	}
	return evaluation{result: mr, validity: c.validator.Classify(res)}
}
