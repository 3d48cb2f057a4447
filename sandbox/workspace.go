package sandbox

import (
	"errors"
	"path/filepath"
)

// Temporary name patterns for workspace paths
const (
	inputFilePattern = "playground-input-*.rs"
	outputDirPattern = "playground-output-*"
)

// Workspace is the host-side footprint of one sandbox session: the file the
// submitted source is written to and the directory the compiler writes
// artifacts into. Both are mounted into every container the session runs.
type Workspace struct {
	InputPath string
	OutputDir string

	fs FileSystem
}

// OpenWorkspace creates a fresh, uniquely named input file and output
// directory in the system temp directory.
func OpenWorkspace(fs FileSystem) (*Workspace, error) {
	inputPath, err := fs.CreateTemp("", inputFilePattern)
	if err != nil {
		return nil, newError(ErrResource, stageOpenWorkspace, inputFilePattern, err)
	}

	outputDir, err := fs.MkdirTemp("", outputDirPattern)
	if err != nil {
		_ = fs.RemoveAll(inputPath)
		return nil, newError(ErrResource, stageOpenWorkspace, outputDirPattern, err)
	}

	return &Workspace{
		InputPath: inputPath,
		OutputDir: outputDir,
		fs:        fs,
	}, nil
}

// WriteSource replaces the content of the input file
func (w *Workspace) WriteSource(code string) error {
	if err := w.fs.WriteFile(w.InputPath, []byte(code), FilePermission); err != nil {
		return newError(ErrSourceWrite, stageWriteSource, w.InputPath, err)
	}
	return nil
}

// ArtifactPath returns the host path of a file in the output directory
func (w *Workspace) ArtifactPath(name string) string {
	return filepath.Join(w.OutputDir, name)
}

// Close removes the input file and the output directory. Both removals are
// attempted even if the first one fails.
func (w *Workspace) Close() error {
	return errors.Join(
		w.fs.RemoveAll(w.InputPath),
		w.fs.RemoveAll(w.OutputDir),
	)
}
