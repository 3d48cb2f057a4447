package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

const bytesPerMB = 1024 * 1024

// DockerAPI is the subset of the Docker Engine client APIEngine uses
type DockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

var _ DockerAPI = (*client.Client)(nil)

// APIEngine implements Engine on top of the Docker Engine API. Unlike the
// CLI it can read the runtime's OOM record after the container exits.
type APIEngine struct {
	logger *zap.Logger
	api    DockerAPI
}

var _ Engine = (*APIEngine)(nil)

// NewAPIEngine connects to the daemon configured by the DOCKER_* environment
// and checks that it answers.
func NewAPIEngine(ctx context.Context, logger *zap.Logger) (*APIEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to connect to docker daemon: %w", err)
	}

	logger.Info("docker client initialized", zap.String("api_version", cli.ClientVersion()))
	return NewAPIEngineWithClient(logger, cli), nil
}

// NewAPIEngineWithClient wraps an existing client
func NewAPIEngineWithClient(logger *zap.Logger, api DockerAPI) *APIEngine {
	return &APIEngine{logger: logger, api: api}
}

// Close releases the client connection
func (e *APIEngine) Close() error {
	return e.api.Close()
}

// Run creates, starts and waits for one container, then collects its logs and
// removes it. A ctx that is already done starts nothing.
func (e *APIEngine) Run(ctx context.Context, inv Invocation) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, fmt.Errorf("not starting container: %w", err)
	}

	cfg, hostCfg := containerConfig(inv)

	e.logger.Debug("creating sandbox container",
		zap.String("name", inv.Name),
		zap.String("image", inv.Image),
		zap.Strings("command", inv.Command))

	created, err := e.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, inv.Name)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to create container: %w", err)
	}
	defer e.remove(created.ID)

	if err := e.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("failed to start container: %w", err)
	}

	exitCode, err := e.wait(ctx, created.ID)
	if err != nil {
		return RunResult{}, err
	}

	// The container has exited; the rest must finish even if ctx is cancelled.
	bg := context.WithoutCancel(ctx)

	var stdout, stderr bytes.Buffer
	if err := e.collectLogs(bg, created.ID, &stdout, &stderr); err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}

	info, err := e.api.ContainerInspect(bg, created.ID)
	if err != nil {
		e.logger.Warn("failed to inspect container", zap.String("id", created.ID), zap.Error(err))
	} else if info.ContainerJSONBase != nil && info.State != nil {
		result.OOMKilled = info.State.OOMKilled
	}

	return result, nil
}

// wait blocks until the container stops. Cancelling ctx kills the container
// and keeps waiting for it to stop.
func (e *APIEngine) wait(ctx context.Context, id string) (int, error) {
	statusCh, errCh := e.api.ContainerWait(context.WithoutCancel(ctx), id, container.WaitConditionNotRunning)

	cancelled := ctx.Done()
	for {
		select {
		case status := <-statusCh:
			if status.Error != nil {
				return 0, fmt.Errorf("failed waiting for container: %s", status.Error.Message)
			}
			return int(status.StatusCode), nil
		case err := <-errCh:
			return 0, fmt.Errorf("failed waiting for container: %w", err)
		case <-cancelled:
			cancelled = nil
			e.logger.Info("killing cancelled container", zap.String("id", id))
			if err := e.api.ContainerKill(context.WithoutCancel(ctx), id, "KILL"); err != nil {
				e.logger.Warn("failed to kill container", zap.String("id", id), zap.Error(err))
			}
		}
	}
}

func (e *APIEngine) collectLogs(ctx context.Context, id string, stdout, stderr io.Writer) error {
	logs, err := e.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Errorf("failed to read container logs: %w", err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return nil
}

func (e *APIEngine) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	if err := e.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		e.logger.Error("failed to remove container", zap.String("id", id), zap.Error(err))
	}
}

// containerConfig is the Engine API form of Invocation.Args
func containerConfig(inv Invocation) (*container.Config, *container.HostConfig) {
	binds := make([]string, 0, len(inv.Mounts))
	for _, m := range inv.Mounts {
		binds = append(binds, m.String())
	}

	resources := container.Resources{
		Memory:     int64(inv.MemoryMB) * bytesPerMB,
		MemorySwap: int64(inv.MemorySwapMB) * bytesPerMB,
	}
	if inv.PidsLimit > 0 {
		pids := int64(inv.PidsLimit)
		resources.PidsLimit = &pids
	}

	cfg := &container.Config{
		Image:      inv.Image,
		Cmd:        inv.Command,
		Env:        inv.Env,
		WorkingDir: inv.WorkDir,
	}

	hostCfg := &container.HostConfig{
		Binds:       binds,
		NetworkMode: container.NetworkMode(inv.Network),
		Resources:   resources,
	}

	return cfg, hostCfg
}
