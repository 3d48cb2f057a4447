package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Executor is the upstream contract of the playground: one method per
// request shape. Both Sandbox (a single session) and Service (a session per
// call) implement it.
type Executor interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResponse, error)
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
	Format(ctx context.Context, req FormatRequest) (FormatResponse, error)
	Lint(ctx context.Context, req LintRequest) (LintResponse, error)
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr []byte, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command and waits for it to exit. A non-zero
// exit status is returned as exitCode, not as an error.
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr []byte, exitCode int, err error) {
	if len(args) < 1 {
		return nil, nil, 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Arguments come from CommandBuilder

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return nil, nil, 0, err
		}
		exitCode = exitError.ExitCode()
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// FileSystem defines the file system operations a Workspace needs
type FileSystem interface {
	CreateTemp(dir, pattern string) (string, error)
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

// CreateTemp creates a new empty file and returns its path
func (RealFileSystem) CreateTemp(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants
const (
	FilePermission = 0600
)
