package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	api "transitportal/internal/http"
	"transitportal/internal/http/handlers"
	"transitportal/internal/scheduler"
	"transitportal/internal/utils"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the reminder cron when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *RootOptions) error {
	app, cleanup, err := opts.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	log := utils.Logger()

	r := api.NewRouter(handlers.New(app.Env, app.DB, app.Deps))
	srv := &http.Server{
		Addr:              app.Env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if app.Env.SchedulerCronEnabled {
		c, err := scheduler.New(scheduler.FromDeps(app.Deps), app.Deps.Location)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info("reminder cron started", zap.String("timezone", app.Env.Timezone))
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", app.Env.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
