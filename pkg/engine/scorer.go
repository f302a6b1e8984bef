package engine

import (
	"context"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/cache"
	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/logging"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
)

// Executor abstracts the instrumented target runner so the campaign can be
// exercised against a fake in tests.
type Executor interface {
	Execute(ctx context.Context, input string) (*perf.ExecutionResult, error)
	ProgramPath() string
	Timeout() time.Duration
}

// Scorer turns candidate executions into measurement results. Every candidate
// gets exactly one instrumented run; its retired instruction count is the
// score. An optional cache short-circuits re-measurement of candidate text
// the campaign has already paid for.
type Scorer struct {
	exec  Executor
	cache cache.MeasurementCache
}

// NewScorer creates a Scorer. The cache may be nil to disable caching.
func NewScorer(exec Executor, mc cache.MeasurementCache) *Scorer {
	return &Scorer{exec: exec, cache: mc}
}

// Measure executes the candidate once and classifies the outcome. The
// returned error is non-nil only for context cancellation; every per-candidate
// failure mode is encoded in the MeasurementResult instead. The execution
// result is returned alongside so the caller can run validity classification
// without a second target run.
func (s *Scorer) Measure(ctx context.Context, candidate core.Candidate) (core.MeasurementResult, *perf.ExecutionResult, error) {
	logger := logging.GetLogger()
	mr := core.MeasurementResult{Candidate: candidate}

	if s.cache != nil {
		key := cache.Key(s.exec.ProgramPath(), candidate.Text)
		if score, hit, err := s.cache.Get(ctx, key); err == nil && hit {
			mr.Score = score
			mr.Failure = core.FailureNone
			return mr, nil, nil
		}
	}

	res, err := s.exec.Execute(ctx, candidate.Text)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.Canceled:
			return mr, nil, err
		case errors.ProfilerParseFailed:
			// The run happened but left no usable counter. A crashing target
			// can take the counter file down with it.
			if res != nil && res.ExitCode != 0 {
				mr.Failure = core.FailureCrash
				mr.ExitCode = res.ExitCode
			} else {
				mr.Failure = core.FailureProfiler
			}
			if res != nil {
				mr.Duration = res.Duration
			}
			return mr, res, nil
		default:
			logger.Warn(ctx, "Measurement failed: %v", err)
			mr.Failure = core.FailureProfiler
			return mr, res, nil
		}
	}

	mr.Duration = res.Duration
	mr.ExitCode = res.ExitCode

	if res.TimedOut {
		mr.Failure = core.FailureTimeout
		return mr, res, nil
	}

	mr.Score = res.InstructionCount
	mr.Failure = core.FailureNone
	return mr, res, nil
}

// Commit records a measured score in the cache. The caller must only commit
// candidates that passed validity classification, because a cache hit skips
// both the target execution and the validator on the next encounter. A
// repeat commit never changes the stored score.
func (s *Scorer) Commit(ctx context.Context, candidate core.Candidate, score int64) {
	if s.cache == nil {
		return
	}
	key := cache.Key(s.exec.ProgramPath(), candidate.Text)
	if err := s.cache.Set(ctx, key, score); err != nil {
		logging.GetLogger().Debug(ctx, "Cache write failed: %v", err)
	}
}
