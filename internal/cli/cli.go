// Package cli builds the liftcall command tree.
//
//	liftcall
//	├── serve      run the session daemon and the local status API
//	├── configure  submit the fleet from the config file once
//	├── request    request an elevator to a floor
//	├── watch      print elevator positions on the poll interval
//	├── locate     print one elevator's position
//	├── remove     remove one elevator from the fleet
//	└── --config, -c
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/liftcall/internal/adapters/http/remote"
	"github.com/okian/liftcall/internal/adapters/mq/queue"
	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/internal/config"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
	"github.com/okian/liftcall/pkg/tracing"
)

const (
	appName = "liftcall"
	version = "1.0.0"

	traceFilePermission = 0o600
)

var configFile string

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "liftcall: request elevators and watch them arrive",
		Long: `liftcall talks to a remote elevator service. It configures the fleet,
queues floor requests for reliable delivery and tracks the assigned car.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.InitWithWriter(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (overrides LIFT_CONFIG)")

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildConfigureCommand())
	rootCmd.AddCommand(buildRequestCommand())
	rootCmd.AddCommand(buildWatchCommand())
	rootCmd.AddCommand(buildLocateCommand())
	rootCmd.AddCommand(buildRemoveCommand())

	return rootCmd
}

// loadConfig layers defaults, the config file and env, then applies the log
// level.
func loadConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(ctx, configFile)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// newClient builds the remote service client from cfg.
func newClient(cfg *config.Config) (*remote.Client, error) {
	return remote.New(cfg.BaseURL,
		remote.WithTimeout(cfg.RequestTimeout()),
		remote.WithLogger(logger.Named("remote")),
	)
}

// newSession builds a session whose delivery and polling follow cfg.
func newSession(cfg *config.Config, client *remote.Client) *service.Session {
	minWait, maxWait := cfg.DeliveryBackoff()
	return service.New(client,
		service.WithPollInterval(cfg.PollInterval()),
		service.WithQueueOptions(
			queue.WithRetryPolicy(queue.RetryPolicy{
				MaxAttempts: cfg.DeliveryMaxAttempts,
				MinInterval: minWait,
				MaxInterval: maxWait,
			}),
			queue.WithCallTimeout(cfg.RequestTimeout()),
		),
	)
}

// startTracing installs the span exporter when tracing is enabled. The
// returned func flushes and releases it.
func startTracing(cfg *config.Config, stdout io.Writer) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.TraceEnabled {
		return noop, nil
	}

	w := stdout
	var f *os.File
	if cfg.TraceOutput != "" {
		var err error
		f, err = os.OpenFile(cfg.TraceOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, traceFilePermission)
		if err != nil {
			return noop, fmt.Errorf("failed to open trace output: %w", err)
		}
		w = f
	}
	if err := tracing.Init(appName, version, w); err != nil {
		if f != nil {
			_ = f.Close()
		}
		return noop, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return func(ctx context.Context) error {
		err := tracing.Shutdown(ctx)
		if f != nil {
			if cErr := f.Close(); err == nil {
				err = cErr
			}
		}
		return err
	}, nil
}

func printElevators(w io.Writer, snaps model.Snapshots) {
	for _, s := range snaps {
		fmt.Fprintf(w, "  elevator %-6s floor %3d  %s %s\n", s.ID, s.CurrentFloor, s.Direction.Arrow(), s.Direction)
	}
}
