package store

import (
	"context"
	"database/sql"
	"errors"
)

// LFSObject mirrors a row in lfs_objects: the database's record of which
// content-addressed blobs a repo has accepted, independent of whether the
// bytes are still present on disk.
type LFSObject struct {
	RepoID    string
	OID       string
	SizeBytes int64
	CreatedAt int64
}

// RecordLFSObject registers a successfully verified upload. Idempotent:
// uploading the same oid again just leaves the existing row (content is
// addressed by oid, so the bytes cannot differ).
func (s *Store) RecordLFSObject(ctx context.Context, repoID, oid string, size int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lfs_objects (repo_id, oid, size_bytes, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (repo_id, oid) DO NOTHING`,
			repoID, oid, size, NowMicros())
		return err
	})
}

// GetLFSObject fetches metadata for a known object, used by the batch API
// to decide whether an upload action is needed.
func (s *Store) GetLFSObject(ctx context.Context, repoID, oid string) (LFSObject, error) {
	var o LFSObject
	err := s.reader.QueryRowContext(ctx,
		`SELECT repo_id, oid, size_bytes, created_at FROM lfs_objects WHERE repo_id = ? AND oid = ?`, repoID, oid,
	).Scan(&o.RepoID, &o.OID, &o.SizeBytes, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LFSObject{}, ErrNotFound
	}
	if err != nil {
		return LFSObject{}, err
	}
	return o, nil
}
