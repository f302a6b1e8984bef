package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
)

func TestClassifyCleanExit(t *testing.T) {
	v := NewValidator(sorterSpec(t), false)

	validity := v.Classify(&perf.ExecutionResult{ExitCode: 0})
	assert.True(t, validity.Valid)
}

func TestClassifyFormatErrors(t *testing.T) {
	v := NewValidator(sorterSpec(t), false)

	cases := []struct {
		name   string
		stderr string
		valid  bool
	}{
		{"python value error", "ValueError: invalid literal for int() with base 10: 'x'", false},
		{"parse error", "parse error near line 1", false},
		{"uppercase match", "PARSE ERROR: bad token", false},
		{"json decode", "json.decoder.JSONDecodeError: Expecting value", false},
		{"segfault message", "Segmentation fault (core dumped)", true},
		{"empty stderr", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validity := v.Classify(&perf.ExecutionResult{ExitCode: 1, Stderr: tc.stderr})
			assert.Equal(t, tc.valid, validity.Valid)
		})
	}
}

func TestClassifyTimeoutIsNeverFormatError(t *testing.T) {
	v := NewValidator(sorterSpec(t), false)

	validity := v.Classify(&perf.ExecutionResult{
		TimedOut: true,
		ExitCode: -1,
		Stderr:   "parse error",
	})
	assert.True(t, validity.Valid)
}

func TestClassifyCrashValidByDefault(t *testing.T) {
	v := NewValidator(sorterSpec(t), false)

	validity := v.Classify(&perf.ExecutionResult{ExitCode: 139, Stderr: "Segmentation fault"})
	assert.True(t, validity.Valid, "a crash on well-formed input is an interesting result")
}

func TestClassifyCrashIsInvalidFlag(t *testing.T) {
	v := NewValidator(sorterSpec(t), true)

	validity := v.Classify(&perf.ExecutionResult{ExitCode: 139, Stderr: "Segmentation fault"})
	assert.False(t, validity.Valid)

	// Clean exits are unaffected by the flag.
	assert.True(t, v.Classify(&perf.ExecutionResult{ExitCode: 0}).Valid)
}

func TestCheckSize(t *testing.T) {
	v := NewValidator(sorterSpec(t), false)

	assert.True(t, v.CheckSize(core.NewCandidate("[1, 2, 3]", 3, 0)).Valid)
	assert.False(t, v.CheckSize(core.NewCandidate("hello world", 3, 0)).Valid)
}
