package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDockerAPI implements DockerAPI in memory
type fakeDockerAPI struct {
	mu sync.Mutex

	createErr  error
	startErr   error
	waitErr    error
	exitCode   int64
	oomKilled  bool
	inspectErr error
	stdout     string
	stderr     string

	// holdUntilKill keeps the container running until ContainerKill
	holdUntilKill bool
	killed        chan struct{}
	killOnce      sync.Once
	started       chan struct{}
	startOnce     sync.Once

	config     *container.Config
	hostConfig *container.HostConfig
	name       string
	killSignal string
	removed    []string
	closed     bool
}

func (f *fakeDockerAPI) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config, f.hostConfig, f.name = config, hostConfig, containerName
	return container.CreateResponse{ID: "c0ffee"}, nil
}

func (f *fakeDockerAPI) ContainerStart(context.Context, string, container.StartOptions) error {
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	return f.startErr
}

func (f *fakeDockerAPI) ContainerWait(_ context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	waitErr, hold, killed := f.waitErr, f.holdUntilKill, f.killed

	go func() {
		if waitErr != nil {
			errCh <- waitErr
			return
		}
		if hold {
			<-killed
		}
		statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	}()

	return statusCh, errCh
}

func (f *fakeDockerAPI) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if f.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	}
	if f.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDockerAPI) ContainerInspect(context.Context, string) (container.InspectResponse, error) {
	if f.inspectErr != nil {
		return container.InspectResponse{}, f.inspectErr
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			State: &container.State{OOMKilled: f.oomKilled},
		},
	}, nil
}

func (f *fakeDockerAPI) ContainerKill(_ context.Context, _ string, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killSignal = signal
	if f.killed != nil {
		f.killOnce.Do(func() { close(f.killed) })
	}
	return nil
}

func (f *fakeDockerAPI) ContainerRemove(_ context.Context, id string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if options.Force {
		f.removed = append(f.removed, id)
	}
	return nil
}

func (f *fakeDockerAPI) Close() error {
	f.closed = true
	return nil
}

func TestContainerConfig(t *testing.T) {
	inv := testInvocation()

	cfg, hostCfg := containerConfig(inv)

	assert.Equal(t, "rust-stable", cfg.Image)
	assert.Equal(t, []string{"cargo", "run"}, []string(cfg.Cmd))
	assert.Equal(t, []string{"PLAYGROUND_TIMEOUT=10", "RUST_BACKTRACE=1"}, cfg.Env)
	assert.Equal(t, "/playground", cfg.WorkingDir)

	assert.Equal(t, []string{
		"/tmp/playground-input-1.rs:/playground/src/main.rs",
		"/tmp/playground-output-1:/playground-result",
	}, hostCfg.Binds)
	assert.Equal(t, container.NetworkMode("none"), hostCfg.NetworkMode)
	assert.Equal(t, int64(256*1024*1024), hostCfg.Memory)
	assert.Equal(t, int64(320*1024*1024), hostCfg.MemorySwap)
	require.NotNil(t, hostCfg.PidsLimit)
	assert.Equal(t, int64(512), *hostCfg.PidsLimit)
	assert.False(t, hostCfg.AutoRemove)

	t.Run("NoPidsLimit", func(t *testing.T) {
		inv.PidsLimit = 0
		_, hostCfg := containerConfig(inv)
		assert.Nil(t, hostCfg.PidsLimit)
	})
}

func TestAPIEngineRun(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Success", func(t *testing.T) {
		api := &fakeDockerAPI{stdout: "Hello, world!\n", stderr: "   Compiling playground\n"}
		engine := NewAPIEngineWithClient(logger, api)

		res, err := engine.Run(context.Background(), testInvocation())
		require.NoError(t, err)

		assert.Equal(t, "Hello, world!\n", string(res.Stdout))
		assert.Equal(t, "   Compiling playground\n", string(res.Stderr))
		assert.Equal(t, 0, res.ExitCode)
		assert.False(t, res.OOMKilled)
		assert.Equal(t, "playground-test", api.name)
		assert.Equal(t, []string{"c0ffee"}, api.removed)
	})

	t.Run("OOMKilled", func(t *testing.T) {
		api := &fakeDockerAPI{exitCode: 137, oomKilled: true, stderr: "Killed\n"}
		engine := NewAPIEngineWithClient(logger, api)

		res, err := engine.Run(context.Background(), testInvocation())
		require.NoError(t, err)
		assert.Equal(t, 137, res.ExitCode)
		assert.True(t, res.OOMKilled)
		assert.Equal(t, KillReasonOOM, res.Status().KillReason)
	})

	t.Run("InspectFailureKeepsResult", func(t *testing.T) {
		api := &fakeDockerAPI{exitCode: 1, stdout: "out", inspectErr: errors.New("no such container")}
		engine := NewAPIEngineWithClient(logger, api)

		res, err := engine.Run(context.Background(), testInvocation())
		require.NoError(t, err)
		assert.Equal(t, 1, res.ExitCode)
		assert.Equal(t, "out", string(res.Stdout))
		assert.False(t, res.OOMKilled)
	})

	t.Run("CreateFailure", func(t *testing.T) {
		api := &fakeDockerAPI{createErr: errors.New("No such image: rust-stable")}
		engine := NewAPIEngineWithClient(logger, api)

		_, err := engine.Run(context.Background(), testInvocation())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create container")
		assert.Empty(t, api.removed)
	})

	t.Run("StartFailureRemovesContainer", func(t *testing.T) {
		api := &fakeDockerAPI{startErr: errors.New("bind source path does not exist")}
		engine := NewAPIEngineWithClient(logger, api)

		_, err := engine.Run(context.Background(), testInvocation())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start container")
		assert.Equal(t, []string{"c0ffee"}, api.removed)
	})

	t.Run("WaitFailure", func(t *testing.T) {
		api := &fakeDockerAPI{waitErr: errors.New("connection reset")}
		engine := NewAPIEngineWithClient(logger, api)

		_, err := engine.Run(context.Background(), testInvocation())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed waiting for container")
	})

	t.Run("CancellationKillsContainer", func(t *testing.T) {
		started := make(chan struct{})
		api := &fakeDockerAPI{holdUntilKill: true, killed: make(chan struct{}), started: started, exitCode: 137, stdout: "partial"}
		engine := NewAPIEngineWithClient(logger, api)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		var res RunResult
		go func() {
			var err error
			res, err = engine.Run(ctx, testInvocation())
			done <- err
		}()

		<-started
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancellation")
		}

		assert.Equal(t, "KILL", api.killSignal)
		assert.Equal(t, 137, res.ExitCode)
		assert.Equal(t, "partial", string(res.Stdout))
		assert.Equal(t, []string{"c0ffee"}, api.removed)
	})

	t.Run("CancelledBeforeStart", func(t *testing.T) {
		api := &fakeDockerAPI{}
		engine := NewAPIEngineWithClient(logger, api)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Run(ctx, testInvocation())
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, api.name)
		assert.Empty(t, api.removed)
	})

	t.Run("Close", func(t *testing.T) {
		api := &fakeDockerAPI{}
		require.NoError(t, NewAPIEngineWithClient(logger, api).Close())
		assert.True(t, api.closed)
	})
}
