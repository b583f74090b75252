package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/gitdaemon/internal/config"
	"github.com/nupi-ai/gitdaemon/internal/pairing"
)

// newPairCommand exposes the pairing handshake from the command line for
// operators who'd rather not drive it through a browser: "pair create"
// mints a code the same way POST /v1/pair{step:"start"} does, scoped to
// the origin passed with --origin.
func newPairCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Manage pairing codes for browser origins",
	}
	cmd.AddCommand(newPairCreateCommand())
	return cmd
}

func newPairCreateCommand() *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Issue a pairing code for an origin",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if origin == "" {
				return fmt.Errorf("--origin is required")
			}
			paths, err := config.GetPaths()
			if err != nil {
				return fmt.Errorf("resolve config paths: %w", err)
			}
			cfgStore, err := config.Open(paths.ConfigFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !originAllowed(cfgStore.Get().OriginAllowlist, origin) {
				return fmt.Errorf("origin %q is not in the configured allowlist; add it with "+
					"\"gitdaemon config allow-origin\" first", origin)
			}

			result, err := pairing.New().Start(origin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "code:       %s\nexpires at: %s\n%s\n",
				result.Code, result.ExpiresAt.Format("15:04:05 MST"), result.Instructions)
			fmt.Fprintln(cmd.OutOrStdout(),
				"\nnote: this code is only redeemable by a running \"gitdaemon serve\" process "+
					"sharing its in-memory pairing state; use the browser-driven flow against a live daemon instead.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "browser origin to pair (e.g. https://app.example.com)")
	return cmd
}

func originAllowed(allowlist []string, origin string) bool {
	for _, a := range allowlist {
		if a == origin {
			return true
		}
	}
	return false
}
