package sandbox

import "fmt"

// Channel is the Rust release track the code is built with
type Channel string

// Supported channels
const (
	ChannelStable  Channel = "stable"
	ChannelBeta    Channel = "beta"
	ChannelNightly Channel = "nightly"
)

// channelImages is the only valid mapping from channel to container image
var channelImages = map[Channel]string{
	ChannelStable:  "rust-stable",
	ChannelBeta:    "rust-beta",
	ChannelNightly: "rust-nightly",
}

// ParseChannel converts user input into a Channel
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if _, ok := channelImages[c]; !ok {
		return "", fmt.Errorf("unknown channel %q, must be one of: stable, beta, nightly", s)
	}
	return c, nil
}

// Image returns the container image for the channel
func (c Channel) Image() (string, error) {
	image, ok := channelImages[c]
	if !ok {
		return "", fmt.Errorf("unknown channel %q", string(c))
	}
	return image, nil
}

// Mode is the cargo build profile
type Mode string

// Supported modes
const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

// ParseMode converts user input into a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if err := m.validate(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Mode) validate() error {
	switch m {
	case ModeDebug, ModeRelease:
		return nil
	default:
		return fmt.Errorf("unknown mode %q, must be one of: debug, release", string(m))
	}
}

// CompileTarget selects what the compiler emits
type CompileTarget string

// Supported compile targets
const (
	TargetAssembly CompileTarget = "asm"
	TargetLLVMIR   CompileTarget = "llvm-ir"
)

// targetSpec ties a target to its compiler flag and the file the compiler writes.
// Both must change together.
type targetSpec struct {
	emitFlag string
	filename string
}

var compileTargets = map[CompileTarget]targetSpec{
	TargetAssembly: {emitFlag: "--emit=asm", filename: "compilation.s"},
	TargetLLVMIR:   {emitFlag: "--emit=llvm-ir", filename: "compilation.ll"},
}

// ParseCompileTarget converts user input into a CompileTarget
func ParseCompileTarget(s string) (CompileTarget, error) {
	t := CompileTarget(s)
	if _, ok := compileTargets[t]; !ok {
		return "", fmt.Errorf("unknown compile target %q, must be one of: asm, llvm-ir", s)
	}
	return t, nil
}

func (t CompileTarget) spec() (targetSpec, error) {
	spec, ok := compileTargets[t]
	if !ok {
		return targetSpec{}, fmt.Errorf("unknown compile target %q", string(t))
	}
	return spec, nil
}

// Filename returns the artifact name the compiler writes for the target
func (t CompileTarget) Filename() (string, error) {
	spec, err := t.spec()
	if err != nil {
		return "", err
	}
	return spec.filename, nil
}

// CompileRequest asks for assembly or LLVM IR of the submitted code
type CompileRequest struct {
	Target  CompileTarget `json:"target"`
	Channel Channel       `json:"channel"`
	Mode    Mode          `json:"mode"`
	Tests   bool          `json:"tests"`
	Code    string        `json:"code"`
}

// CompileResponse carries the emitted artifact, empty when none was produced
type CompileResponse struct {
	Success bool       `json:"success"`
	Code    string     `json:"code"`
	Stdout  string     `json:"stdout"`
	Stderr  string     `json:"stderr"`
	Exit    ExitStatus `json:"exit"`
}

// ExecuteRequest asks to run the submitted program or its tests
type ExecuteRequest struct {
	Channel Channel `json:"channel"`
	Mode    Mode    `json:"mode"`
	Tests   bool    `json:"tests"`
	Code    string  `json:"code"`
}

// ExecuteResponse carries the program output
type ExecuteResponse struct {
	Success bool       `json:"success"`
	Stdout  string     `json:"stdout"`
	Stderr  string     `json:"stderr"`
	Exit    ExitStatus `json:"exit"`
}

// FormatRequest asks to reformat the submitted code
type FormatRequest struct {
	Code string `json:"code"`
}

// FormatResponse carries the reformatted source
type FormatResponse struct {
	Success bool       `json:"success"`
	Code    string     `json:"code"`
	Stdout  string     `json:"stdout"`
	Stderr  string     `json:"stderr"`
	Exit    ExitStatus `json:"exit"`
}

// LintRequest asks to lint the submitted code
type LintRequest struct {
	Code string `json:"code"`
}

// LintResponse carries the linter diagnostics
type LintResponse struct {
	Success bool       `json:"success"`
	Stdout  string     `json:"stdout"`
	Stderr  string     `json:"stderr"`
	Exit    ExitStatus `json:"exit"`
}

// KillReason tells why the container stopped, when the engine can tell
type KillReason string

// Known kill reasons. KillReasonKilled covers every SIGKILL the engine could
// not attribute: the in-container timeout, the memory ceiling without an
// OOM record, or the pids limit.
const (
	KillReasonNone   KillReason = "none"
	KillReasonKilled KillReason = "killed"
	KillReasonOOM    KillReason = "oom"
)

// ExitStatus is the exit code of the sandboxed process and the kill reason
type ExitStatus struct {
	Code       int        `json:"code"`
	KillReason KillReason `json:"kill_reason"`
}

// Success reports whether the process exited cleanly
func (s ExitStatus) Success() bool {
	return s.Code == 0
}
