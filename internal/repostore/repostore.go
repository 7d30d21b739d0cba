// Package repostore is cutman's on-disk bare-repository layout: creation,
// deletion, the trash sweeper, and the per-repo advisory writer lock that
// serializes git-receive-pack against destructive admin operations on the
// same repo.
package repostore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Store owns the bare-repository tree under a data directory. Paths are
// built from namespace and repo ids only, never user-supplied names, which
// makes directory traversal structurally impossible.
type Store struct {
	reposDir string
	trashDir string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Store rooted at reposDir/trashDir, creating them if absent.
func New(reposDir, trashDir string) (*Store, error) {
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return nil, fmt.Errorf("repostore: create repos dir: %w", err)
	}
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return nil, fmt.Errorf("repostore: create trash dir: %w", err)
	}
	return &Store{reposDir: reposDir, trashDir: trashDir, locks: make(map[string]*sync.Mutex)}, nil
}

// Path returns the canonical bare-repository directory for a repo.
func (s *Store) Path(namespaceID, repoID string) string {
	return filepath.Join(s.reposDir, namespaceID, repoID+".git")
}

// WriterLock returns the advisory mutex serializing git-receive-pack and
// destructive admin operations on a repo. It is process-local, which is
// correct for a single-node deployment.
func (s *Store) WriterLock(repoID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[repoID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[repoID] = m
	}
	return m
}

// Create initializes a bare repository on disk. Called after the
// transactional row insert succeeds; on failure the caller deletes the row.
func (s *Store) Create(ctx context.Context, namespaceID, repoID string) error {
	path := s.Path(namespaceID, repoID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("repostore: create namespace dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "init", "--bare", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("repostore: git init --bare: %w: %s", err, out)
	}
	if err := exec.CommandContext(ctx, "git", "-C", path, "config", "core.sharedRepository", "group").Run(); err != nil {
		return fmt.Errorf("repostore: set core.sharedRepository: %w", err)
	}
	// Disable hooks: a self-hosted server must not execute arbitrary code
	// dropped by a pusher, so hooksPath is pointed at an empty directory.
	emptyHooks := filepath.Join(path, ".disabled-hooks")
	if err := os.MkdirAll(emptyHooks, 0o755); err != nil {
		return fmt.Errorf("repostore: create disabled hooks dir: %w", err)
	}
	if err := exec.CommandContext(ctx, "git", "-C", path, "config", "core.hooksPath", emptyHooks).Run(); err != nil {
		return fmt.Errorf("repostore: disable hooks: %w", err)
	}
	return nil
}

// Delete best-effort-removes a repo's directory by moving it into the
// trash subtree, tolerating a missing directory.
func (s *Store) Delete(namespaceID, repoID string) error {
	path := s.Path(namespaceID, repoID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	dest := filepath.Join(s.trashDir, fmt.Sprintf("%s-%s-%d.git", namespaceID, repoID, time.Now().UnixNano()))
	if err := os.Rename(path, dest); err != nil {
		// Cross-device or other rename failure: fall back to a direct,
		// non-recoverable removal rather than leaving an orphan.
		return os.RemoveAll(path)
	}
	return nil
}

// DiskUsage walks a repo's directory and sums file sizes, used as a cheap
// estimate of Repo.size_bytes after a push.
func (s *Store) DiskUsage(namespaceID, repoID string) (int64, error) {
	var total int64
	path := s.Path(namespaceID, repoID)
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Sweep reconciles namespace directories against the set of repo ids the
// caller knows to be live, moving anything unrecognized into trash/.
func (s *Store) Sweep(liveByNamespace map[string]map[string]struct{}) error {
	nsEntries, err := os.ReadDir(s.reposDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, nsEntry := range nsEntries {
		if !nsEntry.IsDir() {
			continue
		}
		nsID := nsEntry.Name()
		live := liveByNamespace[nsID]
		repoEntries, err := os.ReadDir(filepath.Join(s.reposDir, nsID))
		if err != nil {
			continue
		}
		for _, repoEntry := range repoEntries {
			name := repoEntry.Name()
			repoID := name
			if filepath.Ext(name) == ".git" {
				repoID = name[:len(name)-len(".git")]
			}
			if _, ok := live[repoID]; ok {
				continue
			}
			src := filepath.Join(s.reposDir, nsID, name)
			dest := filepath.Join(s.trashDir, fmt.Sprintf("%s-%s-%d.git", nsID, repoID, time.Now().UnixNano()))
			_ = os.Rename(src, dest)
		}
	}
	return nil
}
