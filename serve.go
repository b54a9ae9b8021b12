package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/abefas/todoboard/handlers"
	"github.com/abefas/todoboard/middleware"
	"github.com/abefas/todoboard/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server and the overdue sweep",
		Long: `Start the todoboard web server.

Examples:
  todoboard serve
  todoboard serve --addr :8080 --backend sqlite
  todoboard serve --config /etc/todoboard.toml --no-scheduler`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, cmd.Flags())
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	if cfg.InsecureSecret() {
		logger.Warn("SESSION_SECRET is not set; using the development secret")
	}

	overdue := scheduler.NewOverdue(a.users, a.tasks, cfg.OverdueInterval, logger)
	if cfg.SchedulerEnabled {
		overdue.Start()
	} else {
		logger.Info("overdue sweep disabled")
	}

	h := handlers.NewHandlers(handlers.Options{
		Users:    a.users,
		Tasks:    a.tasks,
		Overdue:  overdue,
		Sessions: middleware.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies, logger),
		Logger:   logger,
	})

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	server := &http.Server{
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StandardLog(),
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()
	logger.Info("server listening", "addr", ln.Addr().String(), "version", Version)

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return server.Shutdown(ctx)
			},
			"overdue-sweep": overdue.Stop,
		},
	)

	exitCode := <-wait
	a.close()
	logger.Info("application exited", "code", exitCode)
	os.Exit(exitCode)
	return nil
}
