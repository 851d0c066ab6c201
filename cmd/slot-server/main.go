package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/slotengine/internal/config"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "slot-server",
		Short: "Doctor slot generation and booking API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(holidayCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig(store string) (*config.Config, error) {
	if store != "" {
		os.Setenv("STORE", store)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp wires the service graph against the configured store. The
// returned cleanup closes the pool, if any.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, func(), error) {
	if cfg.Store == "memory" {
		a, err := newApp(cfg, logger, clock.System, memoryStores())
		return a, func() {}, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(cfg, logger, clock.System, pgStores(pool))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return a.withPool(pool), pool.Close, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the recurring generation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := cmd.Flags().GetString("store")
			return runServer(store)
		},
	}
	cmd.Flags().String("store", "", "Storage backend: pg or memory (overrides STORE)")
	return cmd
}

func runServer(store string) error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := loadConfig(store)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("ENV=development: DevAuthMiddleware is active and unauthenticated requests act as admin")
	}

	ctx := context.Background()
	a, cleanup, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("failed to initialise storage")
	}
	defer cleanup()
	logger.Info().Str("store", cfg.Store).Str("timezone", cfg.Timezone).Msg("storage ready")

	e := a.echo()

	sched, err := a.scheduler()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure scheduler")
	}
	if cfg.SchedulerEnabled {
		sched.Start()
		if next, ok := sched.Next(tickJob); ok {
			logger.Info().Time("next_run", next).Str("cron", cfg.SchedulerCron).Msg("generation scheduler armed")
		}
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cfg.SchedulerEnabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("scheduler did not stop in time")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				applied, err := m.Up(ctx, to)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				for _, mig := range applied {
					fmt.Printf("applied %03d %s\n", mig.Version, mig.Name)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", len(applied))
				return nil
			})
		},
	}
	upCmd.Flags().Int("to", 0, "Apply up to and including this version (0 for all)")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied() {
						status = "applied"
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}

				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				if len(pending) > 0 {
					fmt.Printf("%d migration(s) pending; run `slot-server migrate up`.\n", len(pending))
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// withMigrator opens the configured database and runs fn with a migrator over
// the embedded migrations or --dir.
func withMigrator(cmd *cobra.Command, fn func(context.Context, *db.Migrator) error) error {
	dir, _ := cmd.Flags().GetString("dir")
	var files fs.FS = migrations.FS
	if dir != "" {
		files = os.DirFS(dir)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, files))
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Slot generation operations",
	}

	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduled catch-up synchronously and print per-doctor results",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")

			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, cleanup, err := buildApp(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer cleanup()

			day := clock.Today(a.clock, a.loc)
			if date != "" {
				if day, err = clock.ParseDate(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			report, err := a.generation.TickDate(ctx, day)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	tickCmd.Flags().String("date", "", "Clinic-calendar date to run as (YYYY-MM-DD, default today)")
	cmd.AddCommand(tickCmd)
	return cmd
}

func holidayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holiday",
		Short: "Manage the holiday calendar",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk load holidays from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, cleanup, err := buildApp(ctx, cfg, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.holidays.Import(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	importCmd.Flags().String("file", "holidays.yml", "YAML file with a top-level holidays list")
	cmd.AddCommand(importCmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
