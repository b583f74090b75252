// Command gitdaemon is the loopback broker daemon's CLI entry point, per
// SPEC_FULL.md's "Process identity": a Cobra-based command tree (serve,
// pair, tokens, config) grounded on the teacher's cmd/nupi/main.go root
// command assembly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/gitdaemon/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gitdaemon",
		Short:         "Loopback broker for git, OS-open, and dependency-install operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPairCommand())
	rootCmd.AddCommand(newTokensCommand())
	rootCmd.AddCommand(newConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
