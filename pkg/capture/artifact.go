package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrEmptyArtifact = errors.New("empty artifact")

// ArtifactPath names a new recording file under dir.
func ArtifactPath(dir, ext string) string {
	return filepath.Join(dir, "recording-"+uuid.NewString()+ext)
}

// FileURI renders an absolute path as a file:// locator.
func FileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// Resolve checks that path holds a non-empty artifact and returns its locator.
func Resolve(fsys afero.Fs, path string) (string, error) {
	fi, err := fsys.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if fi.IsDir() || fi.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyArtifact, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute artifact path: %w", err)
	}
	return FileURI(abs), nil
}

// Discard removes a partial artifact; a missing file is not an error.
func Discard(fsys afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	if err := fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
