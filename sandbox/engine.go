package sandbox

import "context"

// sigkillExitCode is what docker reports for a container ended by SIGKILL
const sigkillExitCode = 128 + 9

// RunResult is the raw outcome of one container run
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// OOMKilled is only set by engines that can ask the runtime.
	OOMKilled bool
}

// Status derives the exit status reported to callers
func (r RunResult) Status() ExitStatus {
	reason := KillReasonNone
	switch {
	case r.OOMKilled:
		reason = KillReasonOOM
	case r.ExitCode == sigkillExitCode:
		reason = KillReasonKilled
	}
	return ExitStatus{Code: r.ExitCode, KillReason: reason}
}

// Engine runs an invocation in a fresh container and waits for it to exit.
// An error means the container could not be run at all; a failing program is
// reported through RunResult.ExitCode. When ctx is cancelled the engine
// kills the container and still returns what it captured.
type Engine interface {
	Run(ctx context.Context, inv Invocation) (RunResult, error)
}
