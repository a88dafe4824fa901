// Package localfs implements storage.Provider on a local directory that
// is served by a static file host (nginx, CDN origin). Objects written
// under <root>/<key> become reachable at <publicBaseURL>/<key>.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Provider stores blobs on the local filesystem.
type Provider struct {
	root          string
	publicBaseURL string
}

// New creates a filesystem storage provider rooted at root.
func New(root, publicBaseURL string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Provider{
		root:          abs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Put writes data under the storage root.
func (p *Provider) Put(_ context.Context, key string, reader io.Reader) error {
	dest, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Open reads a stored blob.
func (p *Provider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	dest, err := p.localPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes a stored blob. Missing objects are not an error.
func (p *Provider) Delete(_ context.Context, key string) error {
	dest, err := p.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// PublicURL returns the URL under which the static host serves the key.
func (p *Provider) PublicURL(key string) string {
	return p.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

func (p *Provider) localPath(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	dest := filepath.Join(p.root, cleaned)
	if !strings.HasPrefix(dest, p.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage key escapes root: %q", key)
	}
	return dest, nil
}
