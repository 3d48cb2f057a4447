package sandbox

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrResource       = errors.New("unable to create workspace")
	ErrSourceWrite    = errors.New("unable to write source file")
	ErrInvocation     = errors.New("unable to execute the sandbox command")
	ErrRead           = errors.New("unable to read output file")
	ErrEncoding       = errors.New("output was not valid UTF-8")
	ErrOutputMissing  = errors.New("output was missing")
)

// Stages reported in Error.Stage
const (
	stageValidate      = "validate request"
	stageOpenWorkspace = "open workspace"
	stageWriteSource   = "write source"
	stageClearArtifact = "clear artifact"
	stageRun           = "run sandbox"
	stageReadArtifact  = "read artifact"
	stageReadFormatted = "read formatted source"
	stageDecodeStdout  = "decode stdout"
	stageDecodeStderr  = "decode stderr"
)

// Error is returned by every Sandbox operation. Kind is one of the Err*
// values above, Err is the underlying cause.
type Error struct {
	Kind  error
	Stage string
	Path  string
	Err   error
}

func newError(kind error, stage, path string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Path: path, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
