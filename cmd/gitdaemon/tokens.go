package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/gitdaemon/internal/config"
	"github.com/nupi-ai/gitdaemon/internal/token"
)

// newTokensCommand operates on tokens.json directly: list, revoke.
// It shares the same persisted store the running daemon reads and writes,
// so changes here take effect the next time the daemon reloads or restarts.
func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect and manage issued bearer tokens",
	}
	cmd.AddCommand(newTokensListCommand())
	cmd.AddCommand(newTokensRevokeCommand())
	return cmd
}

func openTokenStore() (*token.Store, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve config paths: %w", err)
	}
	return token.Open(paths.TokensFile)
}

func newTokensListCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List origins holding a live token",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTokenStore()
			if err != nil {
				return err
			}
			records := store.List()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no live tokens")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORIGIN\tCREATED\tEXPIRES")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Origin,
					r.CreatedAt.Format("2006-01-02"), r.ExpiresAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}

func newTokensRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "revoke <origin>",
		Short:         "Revoke the live token for an origin",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTokenStore()
			if err != nil {
				return err
			}
			if err := store.Revoke(args[0]); err != nil {
				return fmt.Errorf("revoke: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked token for %s\n", args[0])
			return nil
		},
	}
}
