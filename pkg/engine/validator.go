package engine

import (
	"strings"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

// formatErrorIndicators are the stderr fragments that mark a rejection by the
// target's own input parser. Matching is case-insensitive substring search.
var formatErrorIndicators = []string{
	"parse error", "syntax error", "invalid format",
	"json.decoder.jsondecodeerror", "valueerror", "typeerror",
	"expected", "invalid literal", "cannot convert",
	"malformed", "unexpected", "invalid input",
	"parsing failed", "format error", "decode error",
	"invalid syntax", "bad input", "wrong format",
}

// Validator classifies executed candidates as valid or invalid. Validity is
// execution-based: a candidate is invalid when the target rejects it with a
// recognizable format error on stderr, or when the specification's size
// function cannot evaluate it. Timeouts are never format errors, and crashes
// count as valid by default because a crash on well-formed input is an
// interesting result, not a malformed one.
type Validator struct {
	spec           *spec.Specification
	crashIsInvalid bool
}

// NewValidator creates a Validator. When crashIsInvalid is set, any non-zero
// exit is treated as a rejection regardless of stderr content.
func NewValidator(sp *spec.Specification, crashIsInvalid bool) *Validator {
	return &Validator{spec: sp, crashIsInvalid: crashIsInvalid}
}

// CheckSize applies the specification's size function without executing
// anything. Candidates the size function cannot evaluate are invalid.
func (v *Validator) CheckSize(candidate core.Candidate) core.Validity {
	if _, err := v.spec.SizeOf(candidate.Text); err != nil {
		return core.Validity{Valid: false, Reason: "size function rejected input"}
	}
	return core.Validity{Valid: true}
}

// Classify inspects a completed execution and decides whether the candidate
// was accepted by the target.
func (v *Validator) Classify(res *perf.ExecutionResult) core.Validity {
	if res.TimedOut {
		return core.Validity{Valid: true}
	}
	if res.ExitCode == 0 {
		return core.Validity{Valid: true}
	}
	if v.crashIsInvalid {
		return core.Validity{Valid: false, Reason: "target exited non-zero"}
	}
	if isFormatError(res.Stderr) {
		return core.Validity{Valid: false, Reason: "target rejected input format"}
	}
	return core.Validity{Valid: true}
}

func isFormatError(stderr string) bool {
	text := strings.ToLower(stderr)
	for _, indicator := range formatErrorIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}
