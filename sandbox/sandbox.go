package sandbox

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/playground/logger"
)

const containerNamePrefix = "playground-"

// Sandbox is one orchestration session. It owns a Workspace for its whole
// lifetime and runs one container per operation. A Sandbox is not safe for
// concurrent use; open one per request.
type Sandbox struct {
	id        string
	logger    *zap.Logger
	builder   *CommandBuilder
	engine    Engine
	fs        FileSystem
	workspace *Workspace
	newName   func() string
}

// Option defines a functional option for Sandbox
type Option func(*Sandbox)

// WithFileSystem sets the FileSystem the workspace lives on
func WithFileSystem(fs FileSystem) Option {
	return func(s *Sandbox) {
		s.fs = fs
	}
}

// WithContainerNames sets the generator of container names
func WithContainerNames(newName func() string) Option {
	return func(s *Sandbox) {
		s.newName = newName
	}
}

// New opens a workspace and returns a Sandbox bound to it. The caller must
// call Close.
func New(log *zap.Logger, builder *CommandBuilder, engine Engine, opts ...Option) (*Sandbox, error) {
	id := uuid.NewString()
	s := &Sandbox{
		id:      id,
		logger:  logger.ForSession(log, id),
		builder: builder,
		engine:  engine,
		fs:      &RealFileSystem{},
		newName: func() string { return containerNamePrefix + uuid.NewString() },
	}

	for _, opt := range opts {
		opt(s)
	}

	ws, err := OpenWorkspace(s.fs)
	if err != nil {
		return nil, err
	}
	s.workspace = ws

	s.logger.Debug("opened workspace",
		zap.String("input", ws.InputPath),
		zap.String("output", ws.OutputDir))

	return s, nil
}

var _ Executor = (*Sandbox)(nil)

// SessionID identifies the session in log entries
func (s *Sandbox) SessionID() string {
	return s.id
}

// Workspace returns the session workspace
func (s *Sandbox) Workspace() *Workspace {
	return s.workspace
}

// Close removes the workspace
func (s *Sandbox) Close() error {
	if err := s.workspace.Close(); err != nil {
		s.logger.Error("failed to remove workspace",
			zap.String("input", s.workspace.InputPath),
			zap.String("output", s.workspace.OutputDir),
			zap.Error(err))
		return err
	}
	return nil
}

// Compile emits assembly or LLVM IR. A build that produces no artifact
// returns an empty Code.
func (s *Sandbox) Compile(ctx context.Context, req CompileRequest) (CompileResponse, error) {
	inv, err := s.builder.Compile(s.workspace, req.Target, req.Channel, req.Mode, req.Tests)
	if err != nil {
		return CompileResponse{}, err
	}

	filename, err := req.Target.Filename()
	if err != nil {
		return CompileResponse{}, newError(ErrInvalidRequest, stageValidate, "", err)
	}

	// A previous compile in this session must not leak its artifact
	artifactPath := s.workspace.ArtifactPath(filename)
	if err := s.fs.RemoveAll(artifactPath); err != nil {
		return CompileResponse{}, newError(ErrResource, stageClearArtifact, artifactPath, err)
	}

	res, err := s.run(ctx, req.Code, inv)
	if err != nil {
		return CompileResponse{}, err
	}

	code, _, err := ReadArtifact(s.fs, s.workspace.OutputDir, filename)
	if err != nil {
		return CompileResponse{}, err
	}

	stdout, stderr, err := decodeOutput(res)
	if err != nil {
		return CompileResponse{}, err
	}

	status := res.Status()
	return CompileResponse{
		Success: status.Success(),
		Code:    code,
		Stdout:  stdout,
		Stderr:  stderr,
		Exit:    status,
	}, nil
}

// Execute runs the program, or its tests when req.Tests is set
func (s *Sandbox) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	inv, err := s.builder.Execute(s.workspace, req.Channel, req.Mode, req.Tests)
	if err != nil {
		return ExecuteResponse{}, err
	}

	res, err := s.run(ctx, req.Code, inv)
	if err != nil {
		return ExecuteResponse{}, err
	}

	stdout, stderr, err := decodeOutput(res)
	if err != nil {
		return ExecuteResponse{}, err
	}

	status := res.Status()
	return ExecuteResponse{
		Success: status.Success(),
		Stdout:  stdout,
		Stderr:  stderr,
		Exit:    status,
	}, nil
}

// Format rewrites the source in place and returns the result. The source
// file must still exist afterwards.
func (s *Sandbox) Format(ctx context.Context, req FormatRequest) (FormatResponse, error) {
	res, err := s.run(ctx, req.Code, s.builder.Format(s.workspace))
	if err != nil {
		return FormatResponse{}, err
	}

	code, found, err := readText(s.fs, s.workspace.InputPath, stageReadFormatted)
	if err != nil {
		return FormatResponse{}, err
	}
	if !found {
		return FormatResponse{}, newError(ErrOutputMissing, stageReadFormatted, s.workspace.InputPath, nil)
	}

	stdout, stderr, err := decodeOutput(res)
	if err != nil {
		return FormatResponse{}, err
	}

	status := res.Status()
	return FormatResponse{
		Success: status.Success(),
		Code:    code,
		Stdout:  stdout,
		Stderr:  stderr,
		Exit:    status,
	}, nil
}

// Lint runs the linter over the source
func (s *Sandbox) Lint(ctx context.Context, req LintRequest) (LintResponse, error) {
	res, err := s.run(ctx, req.Code, s.builder.Lint(s.workspace))
	if err != nil {
		return LintResponse{}, err
	}

	stdout, stderr, err := decodeOutput(res)
	if err != nil {
		return LintResponse{}, err
	}

	status := res.Status()
	return LintResponse{
		Success: status.Success(),
		Stdout:  stdout,
		Stderr:  stderr,
		Exit:    status,
	}, nil
}

// run writes the source and runs the invocation in a uniquely named container
func (s *Sandbox) run(ctx context.Context, code string, inv Invocation) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, newError(ErrInvocation, stageRun, inv.Image, err)
	}

	if err := s.workspace.WriteSource(code); err != nil {
		return RunResult{}, err
	}
	s.logger.Debug("wrote source",
		zap.Int("bytes", len(code)),
		zap.String("path", s.workspace.InputPath))

	inv.Name = s.newName()

	res, err := s.engine.Run(ctx, inv)
	if err != nil {
		return RunResult{}, newError(ErrInvocation, stageRun, inv.Image, err)
	}

	s.logger.Debug("sandbox finished",
		zap.String(logger.FieldContainer, inv.Name),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("oom_killed", res.OOMKilled),
		zap.Int("stdout_len", len(res.Stdout)),
		zap.Int("stderr_len", len(res.Stderr)))

	return res, nil
}

func decodeOutput(res RunResult) (stdout, stderr string, err error) {
	stdout, err = decodeText(res.Stdout, stageDecodeStdout, "")
	if err != nil {
		return "", "", err
	}
	stderr, err = decodeText(res.Stderr, stageDecodeStderr, "")
	if err != nil {
		return "", "", err
	}
	return stdout, stderr, nil
}
