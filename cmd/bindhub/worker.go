package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bindhub/bindhub/internal/config"
	"github.com/bindhub/bindhub/internal/lifecycle"
	"github.com/bindhub/bindhub/internal/metrics"
	"github.com/bindhub/bindhub/internal/store"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume account lifecycle events and keep binding status in sync.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.NATSURL == "" {
		return errors.New("NATS_URL is required to run the worker")
	}

	// Instance id distinguishes replicas in shared log streams; events are
	// safe to process on any replica, so there is no leader election.
	slog.SetDefault(slog.Default().With("instance_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sub, err := lifecycle.NewNATSSubscriber(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer sub.Close()

	_, metricsErr := metrics.StartServer(ctx, cfg.MetricsAddr)

	consumer := lifecycle.NewConsumer(
		sub,
		lifecycle.NewSynchronizer(store.New(pool)),
		cfg.LifecycleSubject,
		cfg.LifecycleWorkers,
	)

	runErr := make(chan error, 1)
	go func() { runErr <- consumer.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("worker shutting down")
		return <-runErr
	case err := <-runErr:
		return err
	case err := <-metricsErr:
		return err
	}
}
