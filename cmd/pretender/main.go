// Command pretender runs the Pretender key-value document database
// emulator: an HTTP front door plus its background TTL and stream
// sweepers, all backed by either PostgreSQL or an in-memory sqlite
// engine.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pretender/config"
	"pretender/internal/httpapi"
	"pretender/internal/itemmgr"
	"pretender/internal/itemtable"
	"pretender/internal/metadata"
	"pretender/internal/sqlh"
	"pretender/internal/streammgr"
	"pretender/internal/sweep"
	"pretender/internal/tablemgr"

	_ "pretender/internal/itemtable/pgddl"
	_ "pretender/internal/itemtable/sqliteddl"
)

// deps bundles every collaborator built from one Config, shared by the
// serve and sweep-once commands.
type deps struct {
	handle  *sqlh.Handle
	store   *metadata.Store
	items   *itemmgr.Manager
	tables  *tablemgr.Manager
	streams *streammgr.Manager
	log     *zap.Logger
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	return cfg.Build()
}

func buildDeps(cfg config.Config) (*deps, error) {
	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	driver, dialect := "sqlite3", sqlh.DialectSQLite
	if cfg.UsePostgreSQL {
		driver, dialect = "postgres", sqlh.DialectPostgres
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	handle := sqlh.Open(db, dialect)

	store := metadata.New(handle)
	itemTables, err := itemtable.NewManager(handle)
	if err != nil {
		return nil, fmt.Errorf("building relation manager: %w", err)
	}

	return &deps{
		handle:  handle,
		store:   store,
		items:   itemmgr.New(handle, store, log),
		tables:  tablemgr.New(store, itemTables, log),
		streams: streammgr.New(handle, store),
		log:     log,
	}, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pretender",
		Short: "A managed key-value document database emulator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults if omitted)")

	loadConfig := func() (config.Config, error) {
		if configPath == "" {
			return config.Default(), nil
		}
		return config.LoadFile(configPath)
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sweepers until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer d.log.Sync()

			if err := d.store.Bootstrap(cmd.Context()); err != nil {
				return fmt.Errorf("bootstrapping metadata store: %w", err)
			}

			ttlSweeper := sweep.NewTTLSweeper(d.items, d.store, cfg.TTLSweepInterval.Duration, cfg.TTLSweepBatchSize, d.log)
			streamSweeper := sweep.NewStreamSweeper(d.streams, d.store, cfg.StreamSweepInterval.Duration, d.log)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ttlSweeper.Start(ctx)
			streamSweeper.Start(ctx)
			defer ttlSweeper.Stop()
			defer streamSweeper.Stop()

			server := &httpapi.Server{Items: d.items, Tables: d.tables, Streams: d.streams, Logger: d.log}
			httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}

			errCh := make(chan error, 1)
			go func() {
				d.log.Info("listening", zap.String("addr", cfg.ListenAddr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				d.log.Info("shutting down")
				return httpServer.Shutdown(context.Background())
			case err := <-errCh:
				return fmt.Errorf("http server failed: %w", err)
			}
		},
	}

	var sweepKind string
	sweepOnceCmd := &cobra.Command{
		Use:   "sweep-once",
		Short: "Run one TTL or stream sweep pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer d.log.Sync()

			switch sweepKind {
			case "ttl":
				ttlSweeper := sweep.NewTTLSweeper(d.items, d.store, cfg.TTLSweepInterval.Duration, cfg.TTLSweepBatchSize, d.log)
				ttlSweeper.SweepOnce(cmd.Context())
				return nil
			case "stream":
				streamSweeper := sweep.NewStreamSweeper(d.streams, d.store, cfg.StreamSweepInterval.Duration, d.log)
				streamSweeper.SweepOnce(cmd.Context())
				return nil
			default:
				return fmt.Errorf("unknown --kind %q; want \"ttl\" or \"stream\"", sweepKind)
			}
		},
	}
	sweepOnceCmd.Flags().StringVar(&sweepKind, "kind", "", `which sweep to run: "ttl" or "stream"`)
	_ = sweepOnceCmd.MarkFlagRequired("kind")

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap-metadata",
		Short: "Idempotently create the table_metadata relation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer d.log.Sync()
			return d.store.Bootstrap(cmd.Context())
		},
	}

	root.AddCommand(serveCmd, sweepOnceCmd, bootstrapCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
