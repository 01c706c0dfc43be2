package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"boqledger/internal/billing"
	"boqledger/internal/config"
	"boqledger/internal/store"
)

// app holds what every data command needs: configuration, the store and the
// billing service on top of it.
type app struct {
	cfg     *config.Config
	repo    store.Repository
	redis   *redis.Client
	billing *billing.Service
}

// openApp loads configuration, opens the SQLite store and picks the project
// locker: Redis when REDIS_URL is set, in-process otherwise.
func openApp(ctx context.Context, cmd *cobra.Command, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	repo, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		log.Error().
			Err(err).
			Str("db_path", cfg.DBPath).
			Msg("Failed to open database")
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}

	a := &app{cfg: cfg, repo: repo}

	var locker store.Locker = store.NewLocalLocker()
	if cfg.RedisURL != "" {
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.redis = client
		locker = store.NewRedisLocker(client, cfg.LockTTL)
		log.Debug().Msg("Using Redis project locks")
	}

	a.billing = billing.NewService(repo, locker, billing.Config{
		CompanyState:        cfg.CompanyState,
		DefaultPaymentTerms: cfg.DefaultPaymentTerms,
		StrictRates:         cfg.StrictGSTRates,
		LockTimeout:         cfg.LockTTL,
	})

	log.Debug().
		Str("db_path", cfg.DBPath).
		Str("company_state", cfg.CompanyState).
		Bool("strict_gst_rates", cfg.StrictGSTRates).
		Msg("Application initialized")

	return a, nil
}

func (a *app) Close(log zerolog.Logger) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if err := a.repo.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

// outputJSON pretty-prints v to stdout.
func outputJSON(v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if _, err := os.Stdout.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
