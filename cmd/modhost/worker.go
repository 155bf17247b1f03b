package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/modhost/activator"
	"github.com/isdmx/modhost/logger"
	"github.com/isdmx/modhost/worker"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Serve one execution domain over stdio",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			worker.IgnoreBrokenPipe()

			app := fx.New(
				fx.Provide(
					// Options come from the environment set up by the host
					worker.LoadOptions,

					func(opts worker.Options) (*zap.Logger, error) {
						return logger.New(opts.LogMode, opts.LogLevel)
					},

					func() activator.Loader {
						return activator.DefaultLoader()
					},

					worker.New,
				),

				fx.Invoke(serveWorker),

				// Use the application logger for fx logs
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log}
				}),
			)

			app.Run()
			return app.Err()
		},
	}
}

// serveWorker runs the protocol on stdio and stops the application once the
// host unloads the domain or closes the channel.
func serveWorker(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.Logger, s *worker.Server) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				if err := s.Serve(ctx, os.Stdin, os.Stdout); err != nil {
					log.Error("worker stopped", zap.Error(err))
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Warn("failed to shut down worker", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			_ = log.Sync()
			return nil
		},
	})
}
