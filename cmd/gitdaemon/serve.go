package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/gitdaemon/internal/config"
	"github.com/nupi-ai/gitdaemon/internal/job"
	"github.com/nupi-ai/gitdaemon/internal/pairing"
	"github.com/nupi-ai/gitdaemon/internal/server"
	"github.com/nupi-ai/gitdaemon/internal/token"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the daemon's HTTP API (blocks until terminated)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("resolve config paths: %w", err)
	}

	logFile, err := openLogFile(paths.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	cfgStore, err := config.Open(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokenStore, err := token.Open(paths.TokensFile)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}

	cfg := cfgStore.Get()
	jobManager := job.New(cfg.JobsMaxConcur, time.Duration(cfg.JobsTimeoutSecs)*time.Second)
	pairingManager := pairing.New()

	srv := server.New(cfgStore, tokenStore, pairingManager, jobManager)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[gitdaemon] starting, config dir %s", paths.Home)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[gitdaemon] received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// openLogFile implements spec.md §6's "logs/daemon.log rotated at 5 × 5
// MiB" by checking the current file's size on each start and rotating it
// out of the way if it has grown past the per-file cap; the 5-generation
// retention itself is enforced by rotateIfNeeded (logrotate.go).
func openLogFile(path string) (*os.File, error) {
	rotateIfNeeded(path)
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
