package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
)

// LocalStore keeps the bucket on the local filesystem under <root>/chart-images.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the bucket directory if needed. baseURL is the public
// origin of the API, e.g. "http://localhost:8080".
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	dir := filepath.Join(root, ChartImagesBucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	dst, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create object: %w", err)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write object: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to close object: %w", closeErr)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to publish object: %w", err)
	}

	logger.FromContext(ctx).Debug("Object stored", "path", objectPath, "contentType", contentType)
	return s.PublicURL(objectPath), nil
}

func (s *LocalStore) Open(_ context.Context, objectPath string) (io.ReadCloser, string, error) {
	src, err := s.resolve(objectPath)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
		}
		return nil, "", fmt.Errorf("failed to open object: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(src))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

func (s *LocalStore) Remove(ctx context.Context, objectPaths ...string) error {
	for _, p := range objectPaths {
		target, err := s.resolve(p)
		if err != nil {
			return err
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove object %s: %w", p, err)
		}
		logger.FromContext(ctx).Debug("Object removed", "path", p)
	}
	return nil
}

func (s *LocalStore) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/%s/%s", s.baseURL, ChartImagesBucket, strings.TrimPrefix(objectPath, "/"))
}

func (s *LocalStore) PathFromURL(publicURL string) (string, bool) {
	return PathFromURL(publicURL)
}

// Handler serves objects below the mount point "/storage/chart-images/".
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix("/storage/"+ChartImagesBucket+"/", http.FileServer(noDirFS{http.Dir(s.dir)}))
}

// noDirFS hides directory listings.
type noDirFS struct{ fs http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
