package charts

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidFilename = errors.New("invalid image filename")

// CleanFilename checks that name is a bare file name and gives it a .png
// extension when it has none.
func CleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	return name, nil
}

// WritePNG writes data to dir/name, creating dir and overwriting any
// existing file. It returns the written path.
func WritePNG(fs afero.Fs, dir, name string, data []byte) (string, error) {
	name, err := CleanFilename(name)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}
