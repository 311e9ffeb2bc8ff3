package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	badgeradapter "github.com/couchcryptid/blow-storage/internal/adapter/badger"
	"github.com/couchcryptid/blow-storage/internal/observability"
	"github.com/couchcryptid/blow-storage/internal/service"
	"github.com/couchcryptid/blow-storage/internal/store"
)

type rootOptions struct {
	dbPath  string
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "blowctl",
		Short: "Inspect and maintain blow storage",
		Long: `Inspect and maintain blow storage

Reads and writes the Badger database used by blowstore. Commands that
open the database need exclusive access to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", os.Getenv("STORAGE_PATH"), "Badger database directory (default $STORAGE_PATH)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage activity to stderr")

	cmd.AddCommand(
		newClassifyCommand(),
		newListCommand(opts),
		newShowCommand(opts),
		newSeedCommand(opts),
		newCheckCommand(opts),
		newReplayCommand(opts),
	)
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	if o.verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// workspace is an opened database with a store and service on top.
type workspace struct {
	persister *badgeradapter.Persister
	store     *store.Store
	svc       *service.Service
}

// open loads every blow from the database into a fresh store.
func (o *rootOptions) open(ctx context.Context) (*workspace, error) {
	if o.dbPath == "" {
		return nil, errors.New("no database: pass --db or set STORAGE_PATH")
	}
	logger := o.logger()

	cfg := badgeradapter.DefaultConfig(o.dbPath)
	cfg.GCInterval = 0
	p, err := badgeradapter.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	st := store.New(logger, observability.NewMetrics(), store.WithPersister(p))
	if err := st.Load(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return &workspace{persister: p, store: st, svc: service.New(st, nil, logger)}, nil
}

func (w *workspace) Close() error {
	return w.persister.Close()
}
