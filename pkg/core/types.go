package core

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is one prospective input to the target program. The text is
// immutable once created; the size band and generation index record where in
// the search the candidate came from.
type Candidate struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	TargetSize int    `json:"target_size"`
	Generation int    `json:"generation"`
}

// NewCandidate creates a candidate with a fresh identifier.
func NewCandidate(text string, targetSize, generation int) Candidate {
	return Candidate{
		ID:         uuid.NewString(),
		Text:       text,
		TargetSize: targetSize,
		Generation: generation,
	}
}

// FailureKind classifies why a measurement produced no usable score.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidCandidate
	FailureTimeout
	FailureCrash
	FailureProfiler
	FailureOracle
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidCandidate:
		return "invalid_candidate"
	case FailureTimeout:
		return "timeout"
	case FailureCrash:
		return "crash"
	case FailureProfiler:
		return "profiler"
	case FailureOracle:
		return "oracle"
	default:
		return "unknown"
	}
}

// MeasurementResult is the outcome of one execution attempt: either a scalar
// instruction count with its wall-clock duration, or a typed failure. Score is
// only meaningful when Failure is FailureNone.
type MeasurementResult struct {
	Candidate Candidate
	Score     int64
	Duration  time.Duration
	ExitCode  int
	Failure   FailureKind
}

// OK reports whether the measurement produced a usable score.
func (m MeasurementResult) OK() bool {
	return m.Failure == FailureNone
}

// Validity is the outcome of execution-based validation.
type Validity struct {
	Valid  bool
	Reason string
}

// SizeBand is an ordered progression of target input sizes defined by a start
// value and an increment. The controller's position in the progression advances
// monotonically once per iteration and never rewinds.
type SizeBand struct {
	Start     int `json:"start"`
	Increment int `json:"increment"`
}

// At returns the target size for the given iteration index.
func (b SizeBand) At(iteration int) int {
	return b.Start + iteration*b.Increment
}

// EliteEntry is a (candidate, score) pair retained because it ranks among the
// best observed so far.
type EliteEntry struct {
	Candidate Candidate `json:"candidate"`
	Score     int64     `json:"score"`
}

// IterationStats summarizes one iteration of the campaign loop.
type IterationStats struct {
	Iteration  int   `json:"iteration"`
	TargetSize int   `json:"target_size"`
	Generated  int   `json:"generated"`
	Validated  int   `json:"validated"`
	Measured   int   `json:"measured"`
	BestScore  int64 `json:"best_score"`

	// Failure counts by category, so callers can judge confidence
	OracleFailures    int `json:"oracle_failures"`
	InvalidCandidates int `json:"invalid_candidates"`
	Timeouts          int `json:"timeouts"`
	Crashes           int `json:"crashes"`
	ProfilerFailures  int `json:"profiler_failures"`

	Duration time.Duration `json:"duration_ns"`
}

// RecordFailure bumps the counter matching the failure kind.
func (s *IterationStats) RecordFailure(kind FailureKind) {
	switch kind {
	case FailureInvalidCandidate:
		s.InvalidCandidates++
	case FailureTimeout:
		s.Timeouts++
	case FailureCrash:
		s.Crashes++
	case FailureProfiler:
		s.ProfilerFailures++
	case FailureOracle:
		s.OracleFailures++
	}
}

// CampaignResult exposes the final ranked elites plus iteration and timing
// metadata. It is read-only once the campaign loop terminates.
type CampaignResult struct {
	CampaignID    string           `json:"campaign_id"`
	Elites        []EliteEntry     `json:"elites"`
	Iterations    int              `json:"iterations"`
	TotalDuration time.Duration    `json:"total_duration_ns"`
	Stats         []IterationStats `json:"stats"`
}

// BestScore returns the top elite score, or zero when no elite was retained.
func (r *CampaignResult) BestScore() int64 {
	if len(r.Elites) == 0 {
		return 0
	}
	return r.Elites[0].Score
}
