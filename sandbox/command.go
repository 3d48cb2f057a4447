package sandbox

import (
	"fmt"
	"strconv"
	"time"
)

// Fixed paths and settings inside the container
const (
	containerSourcePath   = "/playground/src/main.rs"
	containerOutputDir    = "/playground-result"
	containerWorkDir      = "/playground"
	containerArtifactBase = containerOutputDir + "/compilation"
	networkNone           = "none"
	timeoutEnv            = "PLAYGROUND_TIMEOUT"
	backtraceEnv          = "RUST_BACKTRACE"
)

// Mount is a read-write bind mount of a host path into the container
type Mount struct {
	Source string
	Target string
}

// String renders the mount the way --volume expects it
func (m Mount) String() string {
	return m.Source + ":" + m.Target
}

// Invocation is one fully configured run of an ephemeral container. Engines
// translate it either to a command line (Args) or to Engine API calls.
type Invocation struct {
	// Name is optional; when set it lets a caller address the running container.
	Name         string
	Image        string
	Command      []string
	Mounts       []Mount
	WorkDir      string
	Network      string
	MemoryMB     int
	MemorySwapMB int
	Env          []string
	// PidsLimit of zero leaves the process count unlimited.
	PidsLimit int
}

// Args renders the invocation as the arguments of `docker run` (or
// `podman run`), without the binary name.
func (inv Invocation) Args() []string {
	args := []string{"run", "--rm"}

	if inv.Name != "" {
		args = append(args, "--name", inv.Name)
	}

	for _, m := range inv.Mounts {
		args = append(args, "--volume", m.String())
	}

	args = append(args,
		"--workdir", inv.WorkDir,
		"--net", inv.Network,
		"--memory", fmt.Sprintf("%dm", inv.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", inv.MemorySwapMB),
	)

	for _, env := range inv.Env {
		args = append(args, "--env", env)
	}

	if inv.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(inv.PidsLimit))
	}

	args = append(args, inv.Image)
	return append(args, inv.Command...)
}

// Limits are the resource ceilings applied to every container
type Limits struct {
	MemoryMB int
	// MemorySwapMB sits slightly above MemoryMB so that swapping shows up as
	// a kill rather than an ambiguous OOM.
	MemorySwapMB int
	// Timeout is passed to the container through PLAYGROUND_TIMEOUT and
	// enforced inside it.
	Timeout time.Duration
	// PidsLimit caps processes and threads; zero disables the cap.
	PidsLimit int
	Backtrace bool
}

// Tool is a fixed external command run against the mounted source file
type Tool struct {
	Image   string
	Command []string
}

// BuilderConfig configures a CommandBuilder
type BuilderConfig struct {
	Limits Limits
	Format Tool
	Lint   Tool
}

// DefaultBuilderConfig returns the limits and tools used when nothing is configured
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Limits: Limits{
			MemoryMB:     256,
			MemorySwapMB: 320,
			Timeout:      10 * time.Second,
			PidsLimit:    512,
			Backtrace:    true,
		},
		Format: Tool{
			Image:   "rustfmt",
			Command: []string{"rustfmt", "--write-mode", "overwrite", "src/main.rs"},
		},
		Lint: Tool{
			Image:   "clippy",
			Command: []string{"cargo", "clippy"},
		},
	}
}

// CommandBuilder maps requests to container invocations. It holds no state
// beyond its configuration and is safe for concurrent use.
type CommandBuilder struct {
	cfg BuilderConfig
}

// NewCommandBuilder creates a CommandBuilder
func NewCommandBuilder(cfg BuilderConfig) *CommandBuilder {
	return &CommandBuilder{cfg: cfg}
}

// Compile builds the invocation that emits assembly or LLVM IR into the
// workspace output directory.
func (b *CommandBuilder) Compile(ws *Workspace, target CompileTarget, channel Channel, mode Mode, tests bool) (Invocation, error) {
	image, err := channel.Image()
	if err != nil {
		return Invocation{}, newError(ErrInvalidRequest, stageValidate, "", err)
	}

	command, err := executionCommand(&target, mode, tests)
	if err != nil {
		return Invocation{}, newError(ErrInvalidRequest, stageValidate, "", err)
	}

	return b.wrap(ws, image, command), nil
}

// Execute builds the invocation that runs the program, or its tests
func (b *CommandBuilder) Execute(ws *Workspace, channel Channel, mode Mode, tests bool) (Invocation, error) {
	image, err := channel.Image()
	if err != nil {
		return Invocation{}, newError(ErrInvalidRequest, stageValidate, "", err)
	}

	command, err := executionCommand(nil, mode, tests)
	if err != nil {
		return Invocation{}, newError(ErrInvalidRequest, stageValidate, "", err)
	}

	return b.wrap(ws, image, command), nil
}

// Format builds the invocation that rewrites the source file in place
func (b *CommandBuilder) Format(ws *Workspace) Invocation {
	return b.wrap(ws, b.cfg.Format.Image, b.cfg.Format.Command)
}

// Lint builds the invocation that runs the linter on the source file
func (b *CommandBuilder) Lint(ws *Workspace) Invocation {
	return b.wrap(ws, b.cfg.Lint.Image, b.cfg.Lint.Command)
}

func (b *CommandBuilder) wrap(ws *Workspace, image string, command []string) Invocation {
	limits := b.cfg.Limits

	env := []string{fmt.Sprintf("%s=%d", timeoutEnv, int(limits.Timeout/time.Second))}
	if limits.Backtrace {
		env = append(env, backtraceEnv+"=1")
	}

	return Invocation{
		Image:   image,
		Command: append([]string(nil), command...),
		Mounts: []Mount{
			{Source: ws.InputPath, Target: containerSourcePath},
			{Source: ws.OutputDir, Target: containerOutputDir},
		},
		WorkDir:      containerWorkDir,
		Network:      networkNone,
		MemoryMB:     limits.MemoryMB,
		MemorySwapMB: limits.MemorySwapMB,
		Env:          env,
		PidsLimit:    limits.PidsLimit,
	}
}

// executionCommand returns the cargo command line. With a target it is always
// a single rustc build, never a test run.
func executionCommand(target *CompileTarget, mode Mode, tests bool) ([]string, error) {
	if err := mode.validate(); err != nil {
		return nil, err
	}

	cmd := []string{"cargo"}

	switch {
	case target != nil:
		cmd = append(cmd, "rustc")
	case tests:
		cmd = append(cmd, "test")
	default:
		cmd = append(cmd, "run")
	}

	if mode == ModeRelease {
		cmd = append(cmd, "--release")
	}

	if target != nil {
		spec, err := target.spec()
		if err != nil {
			return nil, err
		}
		cmd = append(cmd, "--", "-o", containerArtifactBase, spec.emitFlag)
	}

	return cmd, nil
}
