// Package report writes campaign results to disk as JSON and a short text
// summary suitable for pasting into an issue or a lab notebook.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
)

// Report is the serialized form of a finished campaign.
type Report struct {
	Target      string               `json:"target"`
	GeneratedAt time.Time            `json:"generated_at"`
	CampaignID  string               `json:"campaign_id"`
	Iterations  int                  `json:"iterations"`
	DurationSec float64              `json:"duration_seconds"`
	BestScore   int64                `json:"best_score"`
	Elites      []EliteReport        `json:"elites"`
	Stats       []core.IterationStats `json:"iteration_stats"`
}

// EliteReport is one retained candidate with its rank.
type EliteReport struct {
	Rank       int    `json:"rank"`
	Input      string `json:"input"`
	TargetSize int    `json:"target_size"`
	Generation int    `json:"generation"`
	Score      int64  `json:"score"`
}

// Writer persists campaign reports under a single output directory, one
// timestamped file pair per campaign.
type Writer struct {
	outputDir string
	now       func() time.Time
}

// NewWriter creates a Writer rooted at outputDir, creating it if needed.
func NewWriter(outputDir string) (*Writer, error) {
	if outputDir == "" {
		outputDir = "results"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to create report directory")
	}
	return &Writer{outputDir: outputDir, now: time.Now}, nil
}

// Build converts a campaign result into its report form.
func Build(target string, result *core.CampaignResult, generatedAt time.Time) *Report {
	r := &Report{
		Target:      target,
		GeneratedAt: generatedAt,
		CampaignID:  result.CampaignID,
		Iterations:  result.Iterations,
		DurationSec: result.TotalDuration.Seconds(),
		BestScore:   result.BestScore(),
		Stats:       result.Stats,
	}
	for i, e := range result.Elites {
		r.Elites = append(r.Elites, EliteReport{
			Rank:       i + 1,
			Input:      e.Candidate.Text,
			TargetSize: e.Candidate.TargetSize,
			Generation: e.Candidate.Generation,
			Score:      e.Score,
		})
	}
	return r
}

// Write persists the campaign result as a JSON data file plus a text summary
// and returns the JSON path.
func (w *Writer) Write(target string, result *core.CampaignResult) (string, error) {
	now := w.now()
	base := fmt.Sprintf("pathogen_%s_%d", sanitizeName(target), now.Unix())
	rep := Build(target, result, now)

	jsonPath := filepath.Join(w.outputDir, base+"_data.json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.Unknown, "failed to encode report")
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.Unknown, "failed to write report")
	}

	textPath := filepath.Join(w.outputDir, base+"_report.txt")
	if err := os.WriteFile(textPath, []byte(renderText(rep)), 0o644); err != nil {
		return "", errors.Wrap(err, errors.Unknown, "failed to write report summary")
	}
	return jsonPath, nil
}

func renderText(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Campaign Report: %s\n", r.Target)
	fmt.Fprintf(&b, "Date: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Campaign ID: %s\n", r.CampaignID)
	fmt.Fprintf(&b, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(&b, "Duration: %.1fs\n", r.DurationSec)
	fmt.Fprintf(&b, "Best score: %d instructions\n\n", r.BestScore)

	b.WriteString("Top inputs:\n")
	for _, e := range r.Elites {
		fmt.Fprintf(&b, "%2d. score=%d size=%d gen=%d input=%s\n",
			e.Rank, e.Score, e.TargetSize, e.Generation, e.Input)
	}
	return b.String()
}

// sanitizeName keeps target binary names filesystem-safe.
func sanitizeName(target string) string {
	name := filepath.Base(target)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
