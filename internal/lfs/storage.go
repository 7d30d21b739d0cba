// Package lfs implements cutman's Git LFS Batch API and content-addressed
// object storage. Objects are stored and retrieved by SHA-256 oid;
// uploads are written to a temp file and verified before an atomic
// rename into place, the same idempotent pattern used by every
// content-addressed store in the retrieved example pack.
package lfs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMismatch is returned when an uploaded object's actual oid or size
// does not match what the caller declared.
var ErrMismatch = errors.New("lfs: oid or size mismatch")

// Storage is the content-addressed object store rooted at a data
// directory's lfs/ subtree.
type Storage struct {
	root string
}

// New builds a Storage rooted at root, creating it if absent.
func New(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("lfs: create root: %w", err)
	}
	return &Storage{root: root}, nil
}

// Path returns the on-disk path for an object, sharded by the first two
// oid byte-pairs: <root>/<ns-id>/<oid[0:2]>/<oid[2:4]>/<oid>.
func (s *Storage) Path(namespaceID, oid string) string {
	if len(oid) < 4 {
		return filepath.Join(s.root, namespaceID, oid)
	}
	return filepath.Join(s.root, namespaceID, oid[0:2], oid[2:4], oid)
}

// Exists reports whether an object's bytes are already on disk.
func (s *Storage) Exists(namespaceID, oid string) bool {
	_, err := os.Stat(s.Path(namespaceID, oid))
	return err == nil
}

// Put writes r to the content-addressed path for oid, verifying along the
// way that the actual SHA-256 and byte count match the declared oid/size.
// A mismatch deletes the temp file and returns ErrMismatch rather than
// overwriting the object under the wrong oid.
func (s *Storage) Put(namespaceID, oid string, size int64, r io.Reader) error {
	dest := s.Path(namespaceID, oid)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("lfs: create shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-upload-*")
	if err != nil {
		return fmt.Errorf("lfs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("lfs: write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lfs: close temp file: %w", err)
	}
	if written != size || hex.EncodeToString(hasher.Sum(nil)) != oid {
		return ErrMismatch
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("lfs: rename into place: %w", err)
	}
	success = true
	return nil
}

// Get opens an object for reading.
func (s *Storage) Get(namespaceID, oid string) (*os.File, error) {
	return os.Open(s.Path(namespaceID, oid))
}

// Size reports an object's size on disk.
func (s *Storage) Size(namespaceID, oid string) (int64, error) {
	info, err := os.Stat(s.Path(namespaceID, oid))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
