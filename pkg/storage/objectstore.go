package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore is the narrow contract the services depend on for user uploads.
// Upload returns a public URL for the stored object; Delete accepts that URL
// back and reports whether the object was removed.
type ObjectStore interface {
	Upload(bucket, folder, filename string, data []byte) (string, error)
	Delete(url, bucket string) bool
}

// LocalStore keeps objects on the local filesystem under baseDir/bucket/folder
// and maps them to URLs under baseURL. It stands in for a hosted bucket in
// development and small deployments.
type LocalStore struct {
	baseDir string
	baseURL string
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload stores the object under a random name that keeps the original
// extension and returns its public URL.
func (s *LocalStore) Upload(bucket, folder, filename string, data []byte) (string, error) {
	object := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dir := filepath.Join(s.baseDir, bucket, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, object), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.baseURL + "/" + path.Join(bucket, folder, object), nil
}

// Delete removes the object a previously returned URL points at. Unknown or
// foreign URLs report false without touching the filesystem.
func (s *LocalStore) Delete(url, bucket string) bool {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || !strings.HasPrefix(rel, bucket+"/") {
		return false
	}
	target := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	if err := os.Remove(target); err != nil {
		return os.IsNotExist(err)
	}
	return true
}
