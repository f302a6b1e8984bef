package spec

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
)

// SizeFunc maps candidate text to its semantic size. Implementations must be
// pure; an error return (or panic, which is recovered) marks the candidate
// invalid rather than escaping into the campaign loop.
type SizeFunc func(text string) (int, error)

var (
	sizeFuncsMu sync.RWMutex
	sizeFuncs   = map[string]SizeFunc{
		"length":     sizeByLength,
		"bytes":      sizeByBytes,
		"lines":      sizeByLines,
		"list_items": sizeByListItems,
	}
)

// RegisterSizeFunc makes a custom size calculation available under the given
// name so specification files can reference it.
func RegisterSizeFunc(name string, fn SizeFunc) {
	sizeFuncsMu.Lock()
	defer sizeFuncsMu.Unlock()
	sizeFuncs[name] = fn
}

func lookupSizeFunc(name string) (SizeFunc, bool) {
	sizeFuncsMu.RLock()
	defer sizeFuncsMu.RUnlock()
	fn, ok := sizeFuncs[name]
	return fn, ok
}

// Specification is the external, read-only contract describing what the target
// program accepts: a size-calculation function plus example valid and invalid
// inputs used to ground the generator's prompts.
type Specification struct {
	Name            string   `yaml:"name" validate:"required"`
	Description     string   `yaml:"description" validate:"required"`
	SizeCalculation string   `yaml:"size_calculation" validate:"required"`
	ValidExamples   []string `yaml:"valid_examples"`
	InvalidExamples []string `yaml:"invalid_examples"`

	sizeFn SizeFunc
}

type specFile struct {
	InputSpecification Specification `yaml:"input_specification" validate:"required"`
}

// Load reads and validates a specification file.
func Load(path string) (*Specification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read input specification")
	}
	return Parse(data)
}

// Parse validates specification YAML and resolves its size function.
func Parse(data []byte) (*Specification, error) {
	var file specFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse input specification")
	}

	s := file.InputSpecification
	if err := validator.New().Struct(&s); err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "invalid input specification")
	}

	fn, ok := lookupSizeFunc(s.SizeCalculation)
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown size calculation"),
			errors.Fields{"size_calculation": s.SizeCalculation})
	}
	s.sizeFn = fn

	return &s, nil
}

// SizeOf returns the semantic size of the given text. It never panics; an
// internal failure of the size function is reported as an error and treated as
// Invalid by the engine.
func (s *Specification) SizeOf(text string) (size int, err error) {
	defer func() {
		if r := recover(); r != nil {
			size = 0
			err = errors.WithFields(
				errors.New(errors.InvalidCandidate, "size calculation panicked"),
				errors.Fields{"panic": fmt.Sprintf("%v", r)})
		}
	}()

	size, err = s.sizeFn(text)
	if err != nil {
		return 0, errors.Wrap(err, errors.InvalidCandidate, "size calculation failed")
	}
	if size < 0 {
		return 0, errors.New(errors.InvalidCandidate, "size calculation returned negative size")
	}
	return size, nil
}

// PromptContext formats the specification for inclusion in generation prompts.
func (s *Specification) PromptContext() string {
	var b strings.Builder

	b.WriteString("Input description:\n")
	b.WriteString(strings.TrimSpace(s.Description))
	b.WriteString("\n\nValid input examples:\n")
	b.WriteString(formatExamples(s.ValidExamples))
	b.WriteString("\nInvalid input examples (do NOT produce inputs like these):\n")
	b.WriteString(formatExamples(s.InvalidExamples))

	return b.String()
}

// FormatPreviousBest renders the top elites with their semantic size and score
// for few-shot grounding.
func (s *Specification) FormatPreviousBest(elites []core.EliteEntry, limit int) string {
	if len(elites) == 0 {
		return "No previous successful inputs yet"
	}
	if limit > 0 && len(elites) > limit {
		elites = elites[:limit]
	}

	var lines []string
	for _, e := range elites {
		size, err := s.SizeOf(e.Candidate.Text)
		if err != nil {
			size = 0
		}
		lines = append(lines, fmt.Sprintf("Input: %s | Size: %d | Score: %d instructions",
			e.Candidate.Text, size, e.Score))
	}
	return strings.Join(lines, "\n")
}

func formatExamples(examples []string) string {
	if len(examples) == 0 {
		return "- (none provided)\n"
	}
	var b strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&b, "- %s\n", ex)
	}
	return b.String()
}

func sizeByLength(text string) (int, error) {
	return len([]rune(text)), nil
}

func sizeByBytes(text string) (int, error) {
	return len(text), nil
}

func sizeByLines(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return strings.Count(strings.TrimRight(text, "\n"), "\n") + 1, nil
}

// sizeByListItems counts top-level elements of a bracketed list literal, e.g.
// "[3, 1, [2, 4], 5]" has size 4. The count ignores commas inside nested
// brackets and quoted strings.
func sizeByListItems(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return 0, fmt.Errorf("not a list literal: %q", truncate(trimmed, 40))
	}

	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return 0, nil
	}

	count := 1
	depth := 0
	var quote byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			if c == quote && (i == 0 || inner[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	if depth != 0 || quote != 0 {
		return 0, fmt.Errorf("unbalanced list literal: %q", truncate(trimmed, 40))
	}
	return count, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
