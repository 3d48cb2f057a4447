package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArtifact(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compilation.s"), []byte("\t.text\n\t.file\t\"main.rs\"\n"), 0600))

		content, found, err := ReadArtifact(&RealFileSystem{}, dir, "compilation.s")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "\t.text\n\t.file\t\"main.rs\"\n", content)
	})

	t.Run("Absent", func(t *testing.T) {
		content, found, err := ReadArtifact(&RealFileSystem{}, t.TempDir(), "compilation.ll")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, content)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compilation.ll"), nil, 0600))

		content, found, err := ReadArtifact(&RealFileSystem{}, dir, "compilation.ll")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, content)
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compilation.s"), []byte("ok\xff\xfe"), 0600))

		_, _, err := ReadArtifact(&RealFileSystem{}, dir, "compilation.s")
		require.ErrorIs(t, err, ErrEncoding)
		assert.Contains(t, err.Error(), "offset 2")
	})

	t.Run("Unreadable", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "compilation.s")
		fs := &MockFileSystem{readFileErrs: map[string]error{path: errors.New("input/output error")}}

		_, _, err := ReadArtifact(fs, dir, "compilation.s")
		require.ErrorIs(t, err, ErrRead)

		var sbErr *Error
		require.ErrorAs(t, err, &sbErr)
		assert.Equal(t, path, sbErr.Path)
		assert.Equal(t, stageReadArtifact, sbErr.Stage)
	})

	t.Run("DirectoryInPlaceOfFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "compilation.s"), 0700))

		_, _, err := ReadArtifact(&RealFileSystem{}, dir, "compilation.s")
		require.ErrorIs(t, err, ErrRead)
	})
}

func TestErrorFormatting(t *testing.T) {
	err := newError(ErrRead, stageReadArtifact, "/tmp/out/compilation.s", errors.New("input/output error"))
	assert.Equal(t, "read artifact: unable to read output file (/tmp/out/compilation.s): input/output error", err.Error())

	missing := newError(ErrOutputMissing, stageReadFormatted, "/tmp/in.rs", nil)
	assert.Equal(t, "read formatted source: output was missing (/tmp/in.rs)", missing.Error())
	assert.ErrorIs(t, missing, ErrOutputMissing)
	assert.NotErrorIs(t, missing, ErrRead)
}
