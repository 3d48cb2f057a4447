package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/playground/config"
)

// NewEngine creates the isolation engine selected by sandbox.backend
func NewEngine(logger *zap.Logger, cfg *config.Config) (Engine, error) {
	switch cfg.Sandbox.Backend {
	case config.BackendDocker:
		return NewCLIEngine(logger, BinaryDocker), nil
	case config.BackendPodman:
		return NewCLIEngine(logger, BinaryPodman), nil
	case config.BackendDockerAPI:
		return NewAPIEngine(context.Background(), logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}

// BuilderConfigFrom converts the application configuration into a BuilderConfig
func BuilderConfigFrom(cfg *config.Config) BuilderConfig {
	return BuilderConfig{
		Limits: Limits{
			MemoryMB:     cfg.Sandbox.MemoryMB,
			MemorySwapMB: cfg.Sandbox.MemorySwapMB,
			Timeout:      cfg.GetTimeout(),
			PidsLimit:    cfg.Sandbox.PidsLimit,
			Backtrace:    cfg.Sandbox.Backtrace,
		},
		Format: Tool{Image: cfg.Tools.Format.Image, Command: cfg.Tools.Format.Command},
		Lint:   Tool{Image: cfg.Tools.Lint.Image, Command: cfg.Tools.Lint.Command},
	}
}

// NewServiceFromConfig creates a Service with the configured limits
func NewServiceFromConfig(logger *zap.Logger, cfg *config.Config, engine Engine) *Service {
	logger.Info("sandbox configured",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.Int("timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.Int("memory_mb", cfg.Sandbox.MemoryMB),
		zap.Int("memory_swap_mb", cfg.Sandbox.MemorySwapMB),
		zap.Int("pids_limit", cfg.Sandbox.PidsLimit),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent))

	builder := NewCommandBuilder(BuilderConfigFrom(cfg))
	return NewService(logger, builder, engine, cfg.Sandbox.MaxConcurrent)
}
