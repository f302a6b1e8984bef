package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pathogen",
	Short: "Performance pathology fuzzer for stdin-driven programs",
	Long: `Pathogen searches for inputs that maximize the CPU work a target
program performs, using a language model to propose candidates and perf to
measure retired instructions. Results are ranked by raw instruction count, so
the top inputs expose the target's worst-case behavior.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
