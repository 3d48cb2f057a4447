package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service implements Executor by opening a fresh Sandbox for every call.
// At most maxConcurrent sessions run at once; further calls wait for a slot.
type Service struct {
	logger  *zap.Logger
	builder *CommandBuilder
	engine  Engine
	slots   chan struct{}
	opts    []Option
}

// NewService creates a Service. Options are applied to every Sandbox it opens.
func NewService(logger *zap.Logger, builder *CommandBuilder, engine Engine, maxConcurrent int, opts ...Option) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		logger:  logger,
		builder: builder,
		engine:  engine,
		slots:   make(chan struct{}, maxConcurrent),
		opts:    opts,
	}
}

var _ Executor = (*Service)(nil)

// Compile implements Executor
func (s *Service) Compile(ctx context.Context, req CompileRequest) (CompileResponse, error) {
	return withSession(ctx, s, func(sb *Sandbox) (CompileResponse, error) {
		return sb.Compile(ctx, req)
	})
}

// Execute implements Executor
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	return withSession(ctx, s, func(sb *Sandbox) (ExecuteResponse, error) {
		return sb.Execute(ctx, req)
	})
}

// Format implements Executor
func (s *Service) Format(ctx context.Context, req FormatRequest) (FormatResponse, error) {
	return withSession(ctx, s, func(sb *Sandbox) (FormatResponse, error) {
		return sb.Format(ctx, req)
	})
}

// Lint implements Executor
func (s *Service) Lint(ctx context.Context, req LintRequest) (LintResponse, error) {
	return withSession(ctx, s, func(sb *Sandbox) (LintResponse, error) {
		return sb.Lint(ctx, req)
	})
}

func withSession[T any](ctx context.Context, s *Service, fn func(*Sandbox) (T, error)) (T, error) {
	var zero T

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, fmt.Errorf("waiting for a sandbox slot: %w", ctx.Err())
	}
	defer func() { <-s.slots }()

	// select picks at random when the slot and ctx.Done are both ready
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("waiting for a sandbox slot: %w", err)
	}

	sb, err := New(s.logger, s.builder, s.engine, s.opts...)
	if err != nil {
		return zero, err
	}
	defer func() { _ = sb.Close() }()

	return fn(sb)
}
