// Package blob stores uploaded file bytes on local disk. Each file is kept
// under its ID so re-drives can re-read the original bytes at any time.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store persists raw uploaded file content on the local filesystem.
type Store struct {
	dir string
}

// NewStore creates a blob store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the content of r under the given file ID and returns the blob
// path and the number of bytes written. An existing blob with the same ID is
// replaced. The write goes through a temp file and rename so a crashed upload
// never leaves a truncated blob behind.
func (s *Store) Save(ctx context.Context, fileID string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	name := filepath.Base(fileID)
	path := s.path(name)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("write blob %s: %w", fileID, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("finalize blob %s: %w", fileID, err)
	}

	return path, n, nil
}

// Open returns a reader over the stored blob. The caller must close it.
func (s *Store) Open(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(blobPath))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", blobPath, err)
	}
	return f, nil
}

// Read returns the full stored content of the blob.
func (s *Store) Read(ctx context.Context, blobPath string) ([]byte, error) {
	rc, err := s.Open(ctx, blobPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", blobPath, err)
	}
	return data, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *Store) Delete(ctx context.Context, blobPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(blobPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", blobPath, err)
	}
	return nil
}

func (s *Store) path(fileID string) string {
	return filepath.Join(s.dir, filepath.Base(fileID))
}
