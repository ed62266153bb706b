package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/app"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/config"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           "frontend",
		Short:         "Tasks Tracker web frontend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		log.Fatalf("frontend: %v", err)
	}
}

func run(cmd *cobra.Command) error {
	settings, err := config.Load(config.Options{Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()

	return a.Run(ctx)
}
