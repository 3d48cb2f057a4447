package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealCommandRunner(t *testing.T) {
	runner := RealCommandRunner{}

	t.Run("CapturesStreams", func(t *testing.T) {
		stdout, stderr, exitCode, err := runner.RunCommand(context.Background(),
			[]string{"sh", "-c", "echo out; echo err >&2"})
		require.NoError(t, err)
		assert.Equal(t, "out\n", string(stdout))
		assert.Equal(t, "err\n", string(stderr))
		assert.Equal(t, 0, exitCode)
	})

	t.Run("NonZeroExit", func(t *testing.T) {
		stdout, _, exitCode, err := runner.RunCommand(context.Background(),
			[]string{"sh", "-c", "echo partial; exit 3"})
		require.NoError(t, err)
		assert.Equal(t, "partial\n", string(stdout))
		assert.Equal(t, 3, exitCode)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(context.Background(), []string{"playground-no-such-binary"})
		require.Error(t, err)
	})

	t.Run("NoCommand", func(t *testing.T) {
		_, _, _, err := runner.RunCommand(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestRealFileSystem(t *testing.T) {
	fs := RealFileSystem{}
	dir := t.TempDir()

	path, err := fs.CreateTemp(dir, "input-*.rs")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	require.NoError(t, fs.WriteFile(path, []byte("fn main() {}"), FilePermission))
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermission), info.Mode().Perm())

	sub, err := fs.MkdirTemp(dir, "output-*")
	require.NoError(t, err)
	require.NoError(t, fs.RemoveAll(sub))
	_, err = os.Stat(sub)
	assert.True(t, os.IsNotExist(err))

	// Removing something that is already gone is not an error
	require.NoError(t, fs.RemoveAll(sub))
}
