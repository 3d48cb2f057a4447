package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"unicode/utf8"
)

// ReadArtifact reads an optional output file from dir. A missing file is not
// an error: found is false and content is empty.
func ReadArtifact(fsys FileSystem, dir, name string) (content string, found bool, err error) {
	return readText(fsys, filepath.Join(dir, name), stageReadArtifact)
}

func readText(fsys FileSystem, path, stage string) (string, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, newError(ErrRead, stage, path, err)
	}

	text, err := decodeText(data, stage, path)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// decodeText rejects bytes that are not valid UTF-8 instead of replacing them
func decodeText(data []byte, stage, path string) (string, error) {
	if !utf8.Valid(data) {
		return "", newError(ErrEncoding, stage, path,
			fmt.Errorf("invalid byte sequence at offset %d", invalidOffset(data)))
	}
	return string(data), nil
}

func invalidOffset(data []byte) int {
	offset := 0
	for offset < len(data) {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		offset += size
	}
	return offset
}
