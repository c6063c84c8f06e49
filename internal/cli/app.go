package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/cluster"
	"github.com/harmon-data/harmon/internal/config"
	"github.com/harmon-data/harmon/internal/harmonize"
	"github.com/harmon-data/harmon/internal/reconcile"
	"github.com/harmon-data/harmon/internal/rules"
	"github.com/harmon-data/harmon/internal/store"
)

// app holds everything an open database session needs. Commands build one,
// do their work, and Close it.
type app struct {
	cfg     config.Config
	st      *store.Store
	catalog *catalog.Repository
	rules   *rules.Repository
	logger  *slog.Logger
}

// openApp loads config, configures logging, and opens the database.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &app{
		cfg:     cfg,
		st:      st,
		catalog: catalog.NewRepository(st.DB()),
		rules:   rules.NewRepository(st.DB()),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.st.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func (a *app) harmonizeEngine() *harmonize.Engine {
	return harmonize.NewEngine(a.st, a.catalog, a.rules, a.logger)
}

func (a *app) clusterService() *cluster.Service {
	return cluster.NewService(a.catalog, a.rules, a.cfg.Cluster.TopN)
}

func (a *app) storesRepo() *reconcile.Stores {
	return reconcile.NewStores(a.st.DB())
}

func (a *app) queueRepo() *reconcile.Queue {
	return reconcile.NewQueue(a.st.DB())
}

func (a *app) reconcileEngine() *reconcile.Engine {
	return reconcile.NewEngine(a.st, a.storesRepo(), a.cfg.RemoteOptions(), a.logger)
}

// formatter builds the output formatter for a command invocation.
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
