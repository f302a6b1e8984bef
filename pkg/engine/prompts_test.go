package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
)

func TestParseCandidates(t *testing.T) {
	response := `[1, 2, 3]
Input: [4, 5, 6]
1. [7, 8]
2) [9]
- [10, 11]
# a comment the model added
// another comment

` + "```" + `
[12]
` + "```"

	got := parseCandidates(response)
	assert.Equal(t, []string{
		"[1, 2, 3]", "[4, 5, 6]", "[7, 8]", "[9]", "[10, 11]", "[12]",
	}, got)
}

func TestParseCandidatesEmpty(t *testing.T) {
	assert.Empty(t, parseCandidates(""))
	assert.Empty(t, parseCandidates("\n\n# nothing here\n"))
}

func TestStripCandidatePrefix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Input: [1, 2]", "[1, 2]"},
		{"1. [7, 8]", "[7, 8]"},
		{"12) [9]", "[9]"},
		{"307. deep in a long list", "deep in a long list"},
		{"- [10]", "[10]"},
		// Numeric candidates keep their leading digits.
		{"3.14", "3.14"},
		{"12)abc", "12)abc"},
		{"42", "42"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripCandidatePrefix(tc.in), "input %q", tc.in)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	sp := sorterSpec(t)
	prompt := buildSystemPrompt("/usr/local/bin/sorter", "CPU instructions", sp)

	assert.Contains(t, prompt, "/usr/local/bin/sorter")
	assert.Contains(t, prompt, "CPU instructions")
	assert.Contains(t, prompt, "[1, 2, 3]")
	assert.Contains(t, prompt, "hello world")
}

func TestBuildGenerationPrompt(t *testing.T) {
	sp := sorterSpec(t)
	system := buildSystemPrompt("/bin/sorter", "CPU instructions", sp)

	initial := buildGenerationPrompt(system, sp, 10, 25, nil)
	assert.Contains(t, initial, "10 diverse initial inputs")
	assert.Contains(t, initial, "size of about 25")

	elites := []core.EliteEntry{
		{Candidate: core.NewCandidate("[5, 4, 3, 2, 1]", 5, 0), Score: 12345},
	}
	followup := buildGenerationPrompt(system, sp, 8, 40, elites)
	require.Contains(t, followup, "[5, 4, 3, 2, 1]")
	assert.Contains(t, followup, "Score: 12345 instructions")
	assert.Contains(t, followup, "size of about 40")
}
