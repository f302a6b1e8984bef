package perf

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/logging"
)

// DefaultPerfPath is the profiler binary resolved from PATH.
const DefaultPerfPath = "perf"

// ExecutionResult is the raw outcome of one instrumented run of the target
// program. InstructionCount is only meaningful when TimedOut is false and the
// run produced a parseable counter.
type ExecutionResult struct {
	InstructionCount int64
	Duration         time.Duration
	ExitCode         int
	TimedOut         bool
	Stdout           string
	Stderr           string
}

// Executor runs the target program under `perf stat` with candidate text fed
// on stdin. One profiler invocation per candidate execution; there is no
// sampling or estimation fallback.
type Executor struct {
	programPath string
	programArgs []string
	perfPath    string
	timeout     time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithPerfPath overrides the profiler binary location.
func WithPerfPath(path string) Option {
	return func(e *Executor) { e.perfPath = path }
}

// WithProgramArgs passes extra arguments to the target program.
func WithProgramArgs(args ...string) Option {
	return func(e *Executor) { e.programArgs = args }
}

// NewExecutor creates an executor for the given target program. It fails fast
// when the target is not executable or the profiler is absent, so a campaign
// never starts against a setup that cannot produce scores.
func NewExecutor(programPath string, timeout time.Duration, opts ...Option) (*Executor, error) {
	e := &Executor{
		programPath: programPath,
		perfPath:    DefaultPerfPath,
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	info, err := os.Stat(programPath)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "target program not found"),
			errors.Fields{"program": programPath})
	}
	if info.Mode()&0o111 == 0 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "target program is not executable"),
			errors.Fields{"program": programPath})
	}

	if err := CheckPerf(e.perfPath); err != nil {
		return nil, err
	}

	return e, nil
}

// CheckPerf verifies the profiler is invocable. No fallback is permitted when
// it is not: measurement integrity wins over availability.
func CheckPerf(perfPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, perfPath, "--version").Run(); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.ProfilerUnavailable,
				"perf is not available; install linux-perf to measure instruction counts"),
			errors.Fields{"perf_path": perfPath})
	}
	return nil
}

// Timeout returns the per-execution timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// ProgramPath returns the target program being measured.
func (e *Executor) ProgramPath() string {
	return e.programPath
}

// Execute runs the target once with input on stdin, wrapped by `perf stat`
// requesting the user-space instructions event. On timeout the whole process
// group (perf and its child) is killed and the result is marked TimedOut with
// no partial count. A run whose counter cannot be parsed returns the result
// alongside a ProfilerParseFailed error.
func (e *Executor) Execute(ctx context.Context, input string) (*ExecutionResult, error) {
	logger := logging.GetLogger()

	counterFile, err := os.CreateTemp("", "pathogen-perf-*.csv")
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to create perf counter file")
	}
	counterPath := counterFile.Name()
	counterFile.Close()
	defer os.Remove(counterPath)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{
		"stat",
		"-e", "instructions:u", // user-space retired instructions only
		"-x", ",", // CSV output
		"-o", counterPath,
		"--",
		e.programPath,
	}
	args = append(args, e.programArgs...)

	cmd := exec.CommandContext(runCtx, e.perfPath, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run perf in its own process group so a timeout kill reaches the target
	// program, not just perf itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &ExecutionResult{
		Duration: duration,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), errors.Canceled, "execution canceled")
	}
	if runCtx.Err() == context.DeadlineExceeded {
		logger.Debug(ctx, "execution timed out after %v", e.timeout)
		result.TimedOut = true
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(runErr, &exitErr) {
			return nil, errors.WithFields(
				errors.Wrap(runErr, errors.Unknown, "failed to run target program"),
				errors.Fields{"program": e.programPath})
		}
		result.ExitCode = exitErr.ExitCode()
	}

	count, parseErr := parseCounterFile(counterPath)
	if parseErr != nil {
		logger.Warn(ctx, "failed to parse instruction count from perf output: %v", parseErr)
		return result, parseErr
	}
	result.InstructionCount = count

	return result, nil
}

// parseCounterFile reads the CSV counter file produced by `perf stat -x , -o`.
// CSV format: value,unit,event,running,ratio[,...]. A "<not counted>" or
// "<not supported>" value means the event produced no usable count.
func parseCounterFile(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ProfilerParseFailed, "failed to read perf counter file")
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "instructions") {
			continue
		}

		value := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if value == "<not counted>" || value == "<not supported>" {
			return 0, errors.WithFields(
				errors.New(errors.ProfilerParseFailed, "instructions event produced no count"),
				errors.Fields{"value": value})
		}

		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, errors.ProfilerParseFailed, "unparseable instruction count")
		}
		if count < 0 {
			return 0, errors.New(errors.ProfilerParseFailed, "negative instruction count")
		}
		return count, nil
	}

	return 0, errors.New(errors.ProfilerParseFailed, "no instructions event in perf output")
}
