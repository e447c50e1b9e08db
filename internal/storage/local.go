package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes submissions below a base directory. It is used when no delegated access token
// is available, typically during development.
type Local struct {
	base string
}

// NewLocal resolves base to an absolute path. The directory is created lazily.
func NewLocal(base string) (*Local, error) {
	if strings.TrimSpace(base) == "" {
		base = "./uploads"
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	return &Local{base: abs}, nil
}

func (l *Local) Name() string { return ProviderLocal }

// Base is the absolute storage root.
func (l *Local) Base() string { return l.base }

func (l *Local) CreateFolder(ctx context.Context, name string) (Folder, error) {
	if err := ctx.Err(); err != nil {
		return Folder{}, newProviderError(ProviderLocal, "create_folder", ErrProviderIO, err)
	}
	if err := checkName(name); err != nil {
		return Folder{}, err
	}
	dir := filepath.Join(l.base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Folder{}, newProviderError(ProviderLocal, "create_folder", ErrProviderIO, err)
	}
	return Folder{ID: name, Name: name, Link: "file://" + filepath.ToSlash(dir)}, nil
}

func (l *Local) UploadFile(ctx context.Context, folderID, fileName, mimeType string, data []byte) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, newProviderError(ProviderLocal, "upload_file", ErrProviderIO, err)
	}
	if err := checkName(folderID); err != nil {
		return File{}, err
	}
	if err := checkName(fileName); err != nil {
		return File{}, err
	}
	path := filepath.Join(l.base, folderID, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return File{}, newProviderError(ProviderLocal, "upload_file", ErrProviderIO, err)
	}
	return File{ID: filepath.Join(folderID, fileName), Name: fileName, Link: "file://" + filepath.ToSlash(path)}, nil
}

// CheckWritable creates the base directory if needed and probes it with a temporary file.
func (l *Local) CheckWritable() error {
	if err := os.MkdirAll(l.base, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(l.base, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
