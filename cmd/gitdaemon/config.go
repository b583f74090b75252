package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/gitdaemon/internal/config"
)

// newConfigCommand exposes read/write access to config.json without
// requiring a running daemon: "show" prints the effective config, and
// "allow-origin"/"set-workspace" perform the single-field updates an
// operator most commonly needs before the first "gitdaemon serve".
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the daemon's persisted configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigAllowOriginCommand())
	cmd.AddCommand(newConfigSetWorkspaceCommand())
	return cmd
}

func openConfigStore() (*config.Store, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve config paths: %w", err)
	}
	return config.Open(paths.ConfigFile)
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(store.Get(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigAllowOriginCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "allow-origin <origin>",
		Short:         "Add an origin to the allowlist",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			origin := args[0]
			next, err := store.Update(func(cfg *config.Config) {
				for _, existing := range cfg.OriginAllowlist {
					if existing == origin {
						return
					}
				}
				cfg.OriginAllowlist = append(cfg.OriginAllowlist, origin)
			})
			if err != nil {
				return fmt.Errorf("update config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "allowlist: %v\n", next.OriginAllowlist)
			return nil
		},
	}
}

func newConfigSetWorkspaceCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "set-workspace <path>",
		Short:         "Set the workspace root every repo/deps operation is sandboxed under",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			next, err := store.Update(func(cfg *config.Config) {
				cfg.WorkspaceRoot = args[0]
			})
			if err != nil {
				return fmt.Errorf("update config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspace root: %s\n", next.WorkspaceRoot)
			return nil
		},
	}
}
