package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/pathogen-go/pkg/perf"
	"github.com/XiaoConstantine/pathogen-go/pkg/spec"
)

var checkCmd = &cobra.Command{
	Use:   "check <program> <input-spec>",
	Short: "Verify the target, the profiler and the input specification",
	Long: `Runs the same preflight a campaign would: the target must exist and
be executable, perf must be runnable, and the input specification must parse.
Exits non-zero on the first failure.`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	program, specPath := args[0], args[1]

	if _, err := perf.NewExecutor(program, 30*time.Second); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s is executable and perf is available\n", program)

	sp, err := spec.Load(specPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: input specification %q (size calculation: %s)\n",
		sp.Name, sp.SizeCalculation)
	return nil
}
