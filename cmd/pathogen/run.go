package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/pathogen-go/pkg/cache"
	"github.com/XiaoConstantine/pathogen-go/pkg/config"
	"github.com/XiaoConstantine/pathogen-go/pkg/core"
	"github.com/XiaoConstantine/pathogen-go/pkg/engine"
	"github.com/XiaoConstantine/pathogen-go/pkg/errors"
	"github.com/XiaoConstantine/pathogen-go/pkg/llms"
	"github.com/XiaoConstantine/pathogen-go/pkg/logging"
	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
	"github.com/XiaoConstantine/pathogen-go/pkg/report"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fuzzing campaign against a target program",
	Long: `Runs the full campaign loop: the model proposes candidate inputs at
a growing target size, each candidate is executed under perf, and the highest
scoring inputs are kept and fed back as exemplars.`,
	RunE: runCampaign,
}

func init() {
	runCmd.Flags().String("config", "", "Path to campaign config YAML")
	runCmd.Flags().String("program", "", "Path to the target executable (overrides config)")
	runCmd.Flags().String("input-spec", "", "Path to the input specification YAML (overrides config)")
	runCmd.Flags().Int("iterations", 0, "Number of iterations (overrides config)")
	runCmd.Flags().String("provider", "", "Oracle provider: anthropic, openai or groq (overrides config)")
	runCmd.Flags().String("model", "", "Oracle model identifier (overrides config)")
	runCmd.Flags().String("output-dir", "", "Directory for result files (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runCampaign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	campaign := &cfg.Campaign

	setupLogging(campaign.LogLevel)
	logger := logging.GetLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputSpec, err := spec.Load(campaign.InputSpec)
	if err != nil {
		return err
	}

	// Profiler preflight runs before any oracle traffic, so a missing perf
	// fails fast and cheap.
	executor, err := perf.NewExecutor(campaign.Program,
		time.Duration(campaign.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	llm, err := llms.NewLLM(campaign.LLM.Provider, campaign.LLM.APIKey,
		core.ModelID(campaign.LLM.Model))
	if err != nil {
		return err
	}
	logger.Info(ctx, "Oracle initialized: %s/%s", llm.ProviderName(), llm.ModelID())

	mc, err := cache.New(campaign.Cache)
	if err != nil {
		return err
	}
	if mc != nil {
		defer mc.Close()
	}

	generator := engine.NewGenerator(llm, campaign.Program, "CPU instructions", inputSpec,
		engine.WithGenerationRetries(campaign.LLM.MaxRetries),
		engine.WithBackoffMultiplier(campaign.LLM.BackoffMultiplier),
		engine.WithSamplingParams(campaign.LLM.Temperature, campaign.LLM.MaxTokens),
	)

	c, err := engine.NewCampaign(engine.Params{
		MaxIterations:      campaign.MaxIterations,
		InputsPerIteration: campaign.InputsPerIteration,
		EliteSize:          campaign.EliteSize,
		Band: core.SizeBand{
			Start:     campaign.SizeProgression.StartSize,
			Increment: campaign.SizeProgression.Increment,
		},
		Concurrency:        campaign.Concurrency,
		MaxFormatRetries:   campaign.Validation.MaxFormatRetries,
		StagnantIterations: campaign.Convergence.StagnantIterations,
	},
		generator,
		engine.NewScorer(executor, mc),
		engine.NewValidator(inputSpec, campaign.Validation.CrashIsInvalid),
	)
	if err != nil {
		return err
	}

	result, runErr := c.Run(ctx)
	if runErr != nil && errors.CodeOf(runErr) != errors.Canceled {
		return runErr
	}
	if runErr != nil {
		logger.Warn(ctx, "Campaign interrupted, writing partial results")
	}

	writer, err := report.NewWriter(campaign.OutputDir)
	if err != nil {
		return err
	}
	path, err := writer.Write(campaign.Program, result)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Campaign %s finished: %d iterations, best score %d\n",
		result.CampaignID, result.Iterations, result.BestScore())
	fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", path)
	return nil
}

// loadConfig merges the config file with command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if v, _ := cmd.Flags().GetString("program"); v != "" {
		cfg.Campaign.Program = v
	}
	if v, _ := cmd.Flags().GetString("input-spec"); v != "" {
		cfg.Campaign.InputSpec = v
	}
	if v, _ := cmd.Flags().GetInt("iterations"); v > 0 {
		cfg.Campaign.MaxIterations = v
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Campaign.LLM.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Campaign.LLM.Model = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Campaign.OutputDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(level string) {
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(level),
		Outputs:  []logging.Output{logging.NewConsoleOutput(true)},
	}))
}
