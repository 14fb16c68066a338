// Package cli wires the transit portal commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	intconfig "transitportal/internal/config"
	"transitportal/internal/notify"
	"transitportal/internal/services"
	"transitportal/internal/utils"
)

// App is what every command runs against.
type App struct {
	Env  intconfig.Env
	DB   *sql.DB
	Deps services.Deps
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string

	// Bootstrap overrides environment loading and the DB connection (tests).
	Bootstrap func(ctx context.Context) (*App, func(), error)
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "transitportal",
		Short:         "Transit attendance and reminder service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "optional YAML config file (overrides APP_CONFIG_FILE)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSchedulerCommand(opts))
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (o *RootOptions) bootstrap(ctx context.Context) (*App, func(), error) {
	if o.Bootstrap != nil {
		return o.Bootstrap(ctx)
	}
	if o.ConfigFile != "" {
		if err := os.Setenv("APP_CONFIG_FILE", o.ConfigFile); err != nil {
			return nil, nil, err
		}
	}
	env, err := intconfig.LoadEnv()
	if err != nil {
		return nil, nil, err
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	logger, err := utils.InitLogger(env.LogEnv)
	if err != nil {
		return nil, nil, err
	}
	db, err := intconfig.ConnectDB(env.DatabaseDSN)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	deps, err := services.NewDeps(env, db, notify.LogNotifier{Logger: logger.Named("notify")})
	if err != nil {
		intconfig.CloseDB()
		return nil, nil, err
	}

	cleanup := func() {
		intconfig.CloseDB()
		_ = logger.Sync()
	}
	utils.Logger().Info("bootstrap complete", zap.String("env", env.LogEnv), zap.String("timezone", env.Timezone))
	return &App{Env: env, DB: db, Deps: deps}, cleanup, nil
}
