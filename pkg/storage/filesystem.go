package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps uploaded resource files in a flat directory.
// Stored names are generated by the caller; anything resembling a path
// is reduced to its base name so entries can never escape the root.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

// SaveStream writes r to a temporary file and renames it into place, so
// a partially written upload is never visible under its final name.
func (s *LocalStorage) SaveStream(filename string, r io.Reader) (string, error) {
	name := sanitize(filename)
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp upload: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("flush upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.resolve(name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize upload %s: %w", name, err)
	}
	return name, nil
}

// Open returns a read handle for a stored file.
func (s *LocalStorage) Open(filename string) (*os.File, error) {
	return os.Open(s.resolve(sanitize(filename)))
}

// Exists reports whether the file is present.
func (s *LocalStorage) Exists(filename string) bool {
	_, err := os.Stat(s.resolve(sanitize(filename)))
	return err == nil
}

// Delete removes a stored file. A file already gone is not an error,
// which keeps record deletion idempotent.
func (s *LocalStorage) Delete(filename string) error {
	err := os.Remove(s.resolve(sanitize(filename)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload %s: %w", filename, err)
	}
	return nil
}

// Path returns the on-disk location of a stored file.
func (s *LocalStorage) Path(filename string) string {
	return s.resolve(sanitize(filename))
}

func (s *LocalStorage) resolve(name string) string {
	return filepath.Join(s.root, name)
}

func sanitize(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		return "_"
	}
	return name
}
