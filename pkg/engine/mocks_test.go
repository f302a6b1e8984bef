package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

const sorterSpecYAML = `
input_specification:
  name: integer_list
  description: A JSON-style list of integers, e.g. [3, 1, 2]
  size_calculation: list_items
  valid_examples:
    - "[1, 2, 3]"
    - "[10]"
  invalid_examples:
    - "hello world"
    - "1 2 3"
`

func sorterSpec(t *testing.T) *spec.Specification {
	t.Helper()
	sp, err := spec.Parse([]byte(sorterSpecYAML))
	if err != nil {
		t.Fatalf("parse specification: %v", err)
	}
	return sp
}

// mockLLM replays scripted responses in order. A nil error with an empty
// string models a model that answered with nothing useful.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.responses) {
		return &core.LLMResponse{
			Content: m.responses[idx],
			Usage:   &core.TokenInfo{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		}, nil
	}
	return &core.LLMResponse{Content: ""}, nil
}

func (m *mockLLM) ProviderName() string            { return "mock" }
func (m *mockLLM) ModelID() string                 { return "mock-model" }
func (m *mockLLM) Capabilities() []core.Capability { return []core.Capability{core.CapabilityCompletion} }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeExecutor satisfies Executor with a scripted run function.
type fakeExecutor struct {
	program string
	run     func(input string) (*perf.ExecutionResult, error)

	mu         sync.Mutex
	executions []string
}

func (f *fakeExecutor) Execute(ctx context.Context, input string) (*perf.ExecutionResult, error) {
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), errors.Canceled, "execution canceled")
	}
	f.mu.Lock()
	f.executions = append(f.executions, input)
	f.mu.Unlock()
	return f.run(input)
}

func (f *fakeExecutor) ProgramPath() string { return f.program }

func (f *fakeExecutor) Timeout() time.Duration { return 5 * time.Second }

func (f *fakeExecutor) executionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executions)
}

// quadraticSorter models a target whose work grows with the square of the
// list length. Non-list inputs fail with a parse error on stderr.
func quadraticSorter(sp *spec.Specification) func(input string) (*perf.ExecutionResult, error) {
	return func(input string) (*perf.ExecutionResult, error) {
		n, err := sp.SizeOf(input)
		if err != nil || len(input) == 0 || input[0] != '[' {
			return &perf.ExecutionResult{
				ExitCode: 1,
				Stderr:   "ValueError: invalid literal for int()",
				Duration: time.Millisecond,
			}, nil
		}
		return &perf.ExecutionResult{
			InstructionCount: int64(1000 + n*n*10),
			Duration:         time.Millisecond,
			ExitCode:         0,
		}, nil
	}
}
