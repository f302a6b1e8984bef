package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/pathogen-go/pkg/cache"
	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

func testParams() Params {
	return Params{
		MaxIterations:      3,
		InputsPerIteration: 3,
		EliteSize:          5,
		Band:               core.SizeBand{Start: 10, Increment: 15},
		Concurrency:        2,
		MaxFormatRetries:   1,
	}
}

func newTestCampaign(t *testing.T, params Params, llm *mockLLM, exec *fakeExecutor) *Campaign {
	t.Helper()
	sp := sorterSpec(t)
	gen := NewGenerator(llm, exec.ProgramPath(), "CPU instructions", sp,
		WithGenerationRetries(0),
		WithBackoffBase(time.Millisecond),
	)
	c, err := NewCampaign(params, gen, NewScorer(exec, nil), NewValidator(sp, false))
	require.NoError(t, err)
	return c
}

func TestCampaignParamValidation(t *testing.T) {
	sp := sorterSpec(t)
	exec := &fakeExecutor{program: "/bin/sorter", run: quadraticSorter(sp)}
	gen := NewGenerator(&mockLLM{}, "/bin/sorter", "CPU instructions", sp)
	scorer := NewScorer(exec, nil)
	validator := NewValidator(sp, false)

	for _, params := range []Params{
		{MaxIterations: 0, InputsPerIteration: 1, EliteSize: 1, Band: core.SizeBand{Start: 1}},
		{MaxIterations: 1, InputsPerIteration: 0, EliteSize: 1, Band: core.SizeBand{Start: 1}},
		{MaxIterations: 1, InputsPerIteration: 1, EliteSize: 0, Band: core.SizeBand{Start: 1}},
		{MaxIterations: 1, InputsPerIteration: 1, EliteSize: 1, Band: core.SizeBand{Start: 0}},
		{MaxIterations: 1, InputsPerIteration: 1, EliteSize: 1, Band: core.SizeBand{Start: 1, Increment: -1}},
	} {
		_, err := NewCampaign(params, gen, scorer, validator)
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	}
}

func TestCampaignRunQuadraticTarget(t *testing.T) {
	sp := sorterSpec(t)
	exec := &fakeExecutor{program: "/bin/sorter", run: quadraticSorter(sp)}
	llm := &mockLLM{responses: []string{
		"[1, 2]\n[3, 1, 2]\n[5, 4, 3, 2, 1]",
		"[9, 8, 7, 6, 5, 4]\n[1, 2, 3, 4, 5, 6, 7]\n[2, 4]",
		"[9, 8, 7, 6, 5, 4, 3, 2, 1, 0]\n[1]\n[2, 1]",
	}}

	c := newTestCampaign(t, testParams(), llm, exec)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, c.ID(), result.CampaignID)
	assert.Equal(t, 3, result.Iterations)
	require.Len(t, result.Stats, 3)

	// Size band advances by exactly one position per iteration.
	assert.Equal(t, 10, result.Stats[0].TargetSize)
	assert.Equal(t, 25, result.Stats[1].TargetSize)
	assert.Equal(t, 40, result.Stats[2].TargetSize)

	// Longest list wins: 10 items at quadratic cost.
	require.NotEmpty(t, result.Elites)
	assert.Equal(t, "[9, 8, 7, 6, 5, 4, 3, 2, 1, 0]", result.Elites[0].Candidate.Text)
	assert.Equal(t, int64(1000+10*10*10), result.BestScore())

	for _, st := range result.Stats {
		assert.Equal(t, 3, st.Generated)
		assert.Equal(t, 3, st.Measured)
	}
	assert.Positive(t, result.TotalDuration)
}

func TestCampaignInvalidCandidateNeverMerged(t *testing.T) {
	sp := sorterSpec(t)
	exec := &fakeExecutor{program: "/bin/sorter", run: quadraticSorter(sp)}
	llm := &mockLLM{responses: []string{
		"hello world\n[1, 2]\n[2, 3]",
		"[4, 5, 6]", // replacement batch
	}}

	params := testParams()
	params.MaxIterations = 1
	c := newTestCampaign(t, params, llm, exec)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	for _, e := range result.Elites {
		assert.NotEqual(t, "hello world", e.Candidate.Text)
	}
	require.Len(t, result.Stats, 1)
	assert.Equal(t, 4, result.Stats[0].Generated)
	assert.Equal(t, 1, result.Stats[0].InvalidCandidates)
	assert.Equal(t, 3, result.Stats[0].Measured)
	assert.Equal(t, 2, llm.callCount())
}

func TestCampaignEmptyBatchesStillAdvance(t *testing.T) {
	sp := sorterSpec(t)
	exec := &fakeExecutor{program: "/bin/sorter", run: quadraticSorter(sp)}
	llm := &mockLLM{errs: []error{
		errors.New(errors.OracleUnavailable, "503"),
		errors.New(errors.OracleUnavailable, "503"),
		errors.New(errors.OracleUnavailable, "503"),
	}}

	c := newTestCampaign(t, testParams(), llm, exec)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Iterations)
	assert.Empty(t, result.Elites)
	require.Len(t, result.Stats, 3)
	for i, st := range result.Stats {
		assert.Zero(t, st.Generated)
		assert.Equal(t, 1, st.OracleFailures)
		assert.Equal(t, 10+15*i, st.TargetSize)
	}
	assert.Zero(t, exec.executionCount())
}

func TestCampaignCrashStillEligible(t *testing.T) {
	exec := &fakeExecutor{
		program: "/bin/sorter",
		run: func(input string) (*perf.ExecutionResult, error) {
			return &perf.ExecutionResult{
				InstructionCount: 55555,
				ExitCode:         139,
				Stderr:           "Segmentation fault (core dumped)",
			}, nil
		},
	}
	llm := &mockLLM{responses: []string{"[1, 2, 3]"}}

	params := testParams()
	params.MaxIterations = 1
	params.InputsPerIteration = 1
	c := newTestCampaign(t, params, llm, exec)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Elites, 1)
	assert.Equal(t, int64(55555), result.Elites[0].Score)
	assert.Equal(t, 1, result.Stats[0].Crashes)
}

func TestCampaignTimeoutNotMerged(t *testing.T) {
	exec := &fakeExecutor{
		program: "/bin/sorter",
		run: func(input string) (*perf.ExecutionResult, error) {
			return &perf.ExecutionResult{TimedOut: true, ExitCode: -1}, nil
		},
	}
	llm := &mockLLM{responses: []string{"[1, 2, 3]"}}

	params := testParams()
	params.MaxIterations = 1
	params.InputsPerIteration = 1
	c := newTestCampaign(t, params, llm, exec)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Elites)
	assert.Equal(t, 1, result.Stats[0].Timeouts)
	assert.Zero(t, result.Stats[0].Measured)
}

func TestCampaignConvergence(t *testing.T) {
	exec := &fakeExecutor{
		program: "/bin/sorter",
		run: func(input string) (*perf.ExecutionResult, error) {
			return &perf.ExecutionResult{InstructionCount: 1000, ExitCode: 0}, nil
		},
	}
	llm := &mockLLM{responses: []string{
		"[1, 2]", "[1, 2]", "[1, 2]", "[1, 2]", "[1, 2]",
		"[1, 2]", "[1, 2]", "[1, 2]", "[1, 2]", "[1, 2]",
	}}

	params := testParams()
	params.MaxIterations = 10
	params.InputsPerIteration = 1
	params.StagnantIterations = 2
	c := newTestCampaign(t, params, llm, exec)

	result, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, result.Iterations, 10)
}

func TestCampaignCacheHitCannotBypassValidator(t *testing.T) {
	const freeTextSpecYAML = `
input_specification:
  name: free_text
  description: A single line of text
  size_calculation: length
  valid_examples:
    - "[1, 2]"
  invalid_examples:
    - "hello world"
`
	sp, err := spec.Parse([]byte(freeTextSpecYAML))
	require.NoError(t, err)

	mc, err := cache.New(cache.Config{Type: "memory", MaxEntries: 16})
	require.NoError(t, err)
	defer mc.Close()

	// The rejected input still produces a perf counter, and a large one.
	exec := &fakeExecutor{
		program: "/bin/sorter",
		run: func(input string) (*perf.ExecutionResult, error) {
			if input == "hello world" {
				return &perf.ExecutionResult{
					InstructionCount: 999999,
					ExitCode:         1,
					Stderr:           "parse error near token 'hello'",
				}, nil
			}
			return &perf.ExecutionResult{InstructionCount: 1000, ExitCode: 0}, nil
		},
	}

	// The same rejected text recurs in a later iteration.
	llm := &mockLLM{responses: []string{
		"hello world\n[1, 2]",
		"hello world\n[1, 2]",
	}}
	gen := NewGenerator(llm, exec.ProgramPath(), "CPU instructions", sp,
		WithGenerationRetries(0),
		WithBackoffBase(time.Millisecond),
	)

	params := testParams()
	params.MaxIterations = 2
	params.InputsPerIteration = 2
	params.MaxFormatRetries = 0
	c, err := NewCampaign(params, gen, NewScorer(exec, mc), NewValidator(sp, false))
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, result.Elites)
	for _, e := range result.Elites {
		assert.NotEqual(t, "hello world", e.Candidate.Text)
	}
	assert.Equal(t, int64(1000), result.BestScore())

	// The rejected text is never cached, so iteration 2 re-executes and
	// re-rejects it. The accepted text is served from the cache.
	require.Len(t, result.Stats, 2)
	assert.Equal(t, 1, result.Stats[0].InvalidCandidates)
	assert.Equal(t, 1, result.Stats[1].InvalidCandidates)
	assert.Equal(t, 1, result.Stats[1].Measured)
	assert.Equal(t, 3, exec.executionCount())
}

func TestCampaignCanceledReturnsPartial(t *testing.T) {
	sp := sorterSpec(t)
	exec := &fakeExecutor{program: "/bin/sorter", run: quadraticSorter(sp)}
	llm := &mockLLM{responses: []string{"[1, 2]\n[3, 4]\n[5, 6]"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCampaign(t, testParams(), llm, exec)
	result, err := c.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.Canceled, errors.CodeOf(err))
	require.NotNil(t, result)
	assert.Zero(t, result.Iterations)
	assert.Empty(t, result.Elites)
}
