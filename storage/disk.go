package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DiskProvider writes objects under a root directory of an afero filesystem
// and serves them from baseURL
type DiskProvider struct {
	fs      afero.Fs
	root    string
	baseURL string
}

// NewDiskProvider creates a provider rooted at root on fs
func NewDiskProvider(fs afero.Fs, root, baseURL string) *DiskProvider {
	return &DiskProvider{fs: fs, root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Fs exposes the filesystem, e.g. to serve stored files over HTTP
func (d *DiskProvider) Fs() afero.Fs {
	return afero.NewBasePathFs(d.fs, d.root)
}

func (d *DiskProvider) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(d.root, filepath.FromSlash(clean))
	if err := d.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	f, err := d.fs.Create(full)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = d.fs.Remove(full)
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", key, err)
	}
	return d.baseURL + clean, nil
}
