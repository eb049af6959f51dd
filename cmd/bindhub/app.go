package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bindhub/bindhub/internal/config"
	"github.com/bindhub/bindhub/internal/credential"
	"github.com/bindhub/bindhub/internal/directory"
	"github.com/bindhub/bindhub/internal/model"
	"github.com/bindhub/bindhub/internal/service"
	"github.com/bindhub/bindhub/internal/store"
)

// app bundles the wired collaborators a command needs. Close releases the
// connection pool.
type app struct {
	cfg  config.Config
	pool *pgxpool.Pool
	st   *store.Store
	svc  *service.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	st := store.New(pool)
	creds := credential.NewManager(credential.Options{
		MaxConcurrency: cfg.HashMaxConcurrency,
	})

	var dir directory.Client
	if cfg.DirectoryURL != "" {
		dir = directory.NewHTTPClient(cfg.DirectoryURL, cfg.DirectoryTimeout)
	}

	return &app{
		cfg:  cfg,
		pool: pool,
		st:   st,
		svc: service.New(service.Options{
			Store:           st,
			Credentials:     creds,
			Directory:       dir,
			RegisterTimeout: cfg.RegisterTimeout,
		}),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

// parseCustomConfig decodes a --custom-config flag value. Empty means no
// document.
func parseCustomConfig(raw string) (model.CustomConfig, error) {
	if raw == "" {
		return nil, nil
	}
	var cfg model.CustomConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parsing custom config: %w", err)
	}
	return cfg, nil
}
