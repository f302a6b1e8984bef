// Package pathogen is a performance pathology fuzzer: it searches for inputs
// that maximize the CPU work a black-box program performs, using a language
// model to propose candidates and Linux perf to measure retired instructions.
//
// The campaign loop generates a batch of candidate inputs at the current
// target size, validates each one by executing the target and classifying its
// stderr, measures the survivors under `perf stat -e instructions:u`, and
// keeps the highest scoring inputs as exemplars for the next batch. Target
// sizes walk a fixed band (start + i*increment) so the search covers small
// and large inputs alike, and the band advances every iteration regardless of
// how the iteration went.
//
// Key Components:
//
//   - core: Shared types for the campaign loop - Candidate, MeasurementResult,
//     SizeBand, EliteEntry - plus the LLM capability interface.
//
//   - engine: The campaign controller with its collaborators:
//     * Generator: prompt assembly, oracle retries, candidate parsing
//     * Validator: execution-based format error classification
//     * Scorer: one instrumented run per candidate, optional caching
//     * EliteStore: bounded, descending, duplicate-free best inputs
//
//   - perf: perf stat wrapper with process-group kill on timeout.
//
//   - spec: YAML input specifications with named semantic size functions.
//
//   - llms: Anthropic, OpenAI and Groq oracle backends.
//
//   - cache: memory and SQLite measurement caches keyed by target plus
//     candidate text.
//
//   - report: JSON and text result files per campaign.
//
// The pathogen binary under cmd/pathogen wires these together from a YAML
// config file.
package pathogen
