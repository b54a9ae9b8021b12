package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abefas/todoboard/config"
	"github.com/abefas/todoboard/database"
	"github.com/abefas/todoboard/logging"
	"github.com/abefas/todoboard/store"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "todoboard",
		Short:         "todoboard - a multi-user to-do board",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(usersCmd())
	return rootCmd
}

// app holds what every command needs: configuration, logger and the stores.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	db     *database.DB
	users  *store.UserStore
	tasks  *store.TaskStore
}

func openApp(ctx context.Context, flags *pflag.FlagSet) (*app, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if cfg.Source != "" {
		logger.Debug("loaded config file", "path", cfg.Source)
	}

	db, err := database.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Backend, err)
	}
	logger.Info("storage ready", "backend", db.Backend, "location", db.Where)

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		users:  store.NewUserStore(db.Users, store.NewPasswordHasher(cfg.BcryptCost)),
		tasks:  store.NewTaskStore(db.Tasks),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", "err", err)
	}
}
