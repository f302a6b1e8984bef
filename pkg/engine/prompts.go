package engine

import (
	"fmt"
	"strings"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

const systemPromptTemplate = `You are generating test inputs for a program under analysis.

Target program: %s
Optimization goal: maximize %s consumed by the program when processing your input.

%s

Respond with one input per line and nothing else. No numbering, no commentary,
no code fences. Each line must be a complete input the program can consume on
its own.`

const generationPromptTemplate = `%s

Previous best inputs, with their semantic size and measured score:
%s

Generate %d new inputs, each with a semantic size of about %d. Build on the
structure of the best inputs above but explore variations that could drive the
score higher. Respond with one input per line and nothing else.`

const initialPromptSuffix = `

Generate %d diverse initial inputs, each with a semantic size of about %d.`

// buildSystemPrompt renders the invariant portion of every generation request.
func buildSystemPrompt(programPath, metric string, sp *spec.Specification) string {
	return fmt.Sprintf(systemPromptTemplate, programPath, metric, sp.PromptContext())
}

// buildGenerationPrompt renders the per-iteration request. The first iteration
// has no exemplars, so it asks for diverse seeds instead.
func buildGenerationPrompt(system string, sp *spec.Specification, count, targetSize int, elites []core.EliteEntry) string {
	if len(elites) == 0 {
		return system + fmt.Sprintf(initialPromptSuffix, count, targetSize)
	}
	return fmt.Sprintf(generationPromptTemplate,
		system,
		sp.FormatPreviousBest(elites, exemplarLimit),
		count,
		targetSize,
	)
}

// parseCandidates extracts one candidate per non-empty response line,
// stripping list prefixes and dropping commentary the model sometimes adds.
func parseCandidates(response string) []string {
	var candidates []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "```") {
			continue
		}
		line = stripCandidatePrefix(line)
		if line != "" {
			candidates = append(candidates, line)
		}
	}
	return candidates
}

// stripCandidatePrefix removes label and list markers such as "Input:",
// "- ", "3." or "12)". Numbered markers must be followed by whitespace so a
// bare numeric candidate like "3.14" survives intact.
func stripCandidatePrefix(line string) string {
	for _, p := range []string{"Input:", "input:", "- "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		rest := line[i+1:]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return line
}
