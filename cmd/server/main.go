package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/playground/config"
	"github.com/isdmx/playground/logger"
	"github.com/isdmx/playground/mcpserver"
	"github.com/isdmx/playground/sandbox"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,

			// Isolation engine selected by sandbox.backend
			sandbox.NewEngine,

			// One sandbox session per call, bounded by sandbox.max_concurrent
			fx.Annotate(
				sandbox.NewServiceFromConfig,
				fx.As(new(sandbox.Executor)),
			),

			mcpserver.New,
		),

		fx.Invoke(registerLifecycle),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger,
	server *mcpserver.MCPServer, engine sandbox.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var serve func() error
			switch cfg.Server.Transport {
			case "stdio":
				serve = server.ServeStdio
			case "http":
				serve = server.ServeHTTP
			default:
				return fmt.Errorf("unsupported transport: %s", cfg.Server.Transport)
			}

			go func() {
				if err := serve(); err != nil {
					log.Error("transport stopped", zap.String("transport", cfg.Server.Transport), zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				// stdio ends when the client closes stdin
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := server.Shutdown(ctx)
			if closer, ok := engine.(io.Closer); ok {
				if closeErr := closer.Close(); closeErr != nil {
					log.Warn("failed to close sandbox engine", zap.Error(closeErr))
				}
			}
			_ = log.Sync()
			return err
		},
	})
}
