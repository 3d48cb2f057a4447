package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Container CLI binaries CLIEngine is known to work with
const (
	BinaryDocker = "docker"
	BinaryPodman = "podman"
)

// killTimeout bounds each `kill` call issued on cancellation
const killTimeout = 10 * time.Second

// killRetryInterval spaces out kill attempts while `run` is still creating
// the container
const killRetryInterval = 100 * time.Millisecond

// CLIEngine implements Engine by running `docker run` or `podman run`
type CLIEngine struct {
	logger    *zap.Logger
	binary    string
	cmdRunner CommandRunner
}

// CLIEngineOption defines a functional option for CLIEngine
type CLIEngineOption func(*CLIEngine)

// WithCommandRunner sets the CommandRunner for CLIEngine
func WithCommandRunner(cmdRunner CommandRunner) CLIEngineOption {
	return func(e *CLIEngine) {
		e.cmdRunner = cmdRunner
	}
}

// NewCLIEngine creates a CLIEngine for the given container binary
func NewCLIEngine(logger *zap.Logger, binary string, opts ...CLIEngineOption) *CLIEngine {
	engine := &CLIEngine{
		logger:    logger,
		binary:    binary,
		cmdRunner: &RealCommandRunner{}, // Default implementation
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

var _ Engine = (*CLIEngine)(nil)

// Run executes the invocation and blocks until the CLI exits. The timeout is
// enforced inside the container, so the CLI process itself is never killed;
// cancelling ctx kills the named container instead. A ctx that is already
// done starts nothing.
func (e *CLIEngine) Run(ctx context.Context, inv Invocation) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, fmt.Errorf("not starting container: %w", err)
	}

	args := append([]string{e.binary}, inv.Args()...)
	e.logger.Debug("running sandbox command", zap.Strings("args", args))

	done := make(chan struct{})
	defer close(done)

	if inv.Name != "" {
		go func() {
			select {
			case <-ctx.Done():
				e.killUntilGone(inv.Name, done)
			case <-done:
			}
		}()
	}

	stdout, stderr, exitCode, err := e.cmdRunner.RunCommand(context.WithoutCancel(ctx), args)
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
	}, nil
}

// killUntilGone retries `kill` until it succeeds or `run` returns. The
// container may not exist yet when ctx is cancelled early.
func (e *CLIEngine) killUntilGone(name string, done <-chan struct{}) {
	e.logger.Info("killing cancelled container", zap.String("container", name))

	ticker := time.NewTicker(killRetryInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if e.kill(name, attempt) {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func (e *CLIEngine) kill(name string, attempt int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	_, stderr, exitCode, err := e.cmdRunner.RunCommand(ctx, []string{e.binary, "kill", name})
	if err != nil || exitCode != 0 {
		e.logger.Debug("kill attempt failed",
			zap.String("container", name),
			zap.Int("attempt", attempt),
			zap.Int("exit_code", exitCode),
			zap.ByteString("stderr", stderr),
			zap.Error(err))
		return false
	}
	return true
}
