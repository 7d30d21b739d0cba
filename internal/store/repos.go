package store

import (
	"context"
	"database/sql"
	"errors"

	"cutman.dev/cutman/internal/ids"
)

// CreateRepo inserts a repo row after checking the namespace's repo_limit
// and the folder's namespace, inside the same transaction so both checks
// are race-free against concurrent creates (invariants 4 and 6). It does
// not touch the filesystem; callers compose this with the repository
// store's on-disk create and roll back the row on a filesystem failure
// (transactional-then-filesystem, with a compensating delete on failure).
func (s *Store) CreateRepo(ctx context.Context, namespaceID, name, description string, folderID *int64) (Repo, error) {
	r := Repo{ID: ids.New(), NamespaceID: namespaceID, Name: name, Description: description, FolderID: folderID, RowVersion: 1, CreatedAt: NowMicros()}
	r.UpdatedAt = r.CreatedAt

	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var limit sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT repo_limit FROM namespaces WHERE id = ?`, namespaceID).Scan(&limit); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if limit.Valid {
			var count int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM repos WHERE namespace_id = ?`, namespaceID).Scan(&count); err != nil {
				return err
			}
			if int64(count) >= limit.Int64 {
				return ErrRepoLimit
			}
		}
		if folderID != nil {
			var folderNS string
			if err := tx.QueryRowContext(ctx, `SELECT namespace_id FROM folders WHERE id = ?`, *folderID).Scan(&folderNS); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if folderNS != namespaceID {
				return ErrCrossNamespace
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO repos (id, namespace_id, name, name_ci, description, folder_id, size_bytes, row_version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`,
			r.ID, r.NamespaceID, r.Name, ciName(r.Name), r.Description, nullInt64(r.FolderID), r.CreatedAt, r.UpdatedAt)
		return mapUniqueErr(err, ErrAlreadyExists)
	})
	if err != nil {
		return Repo{}, err
	}
	return r, nil
}

// DeleteRepoRow removes the repo row. Callers then best-effort remove the
// on-disk directory: delete the row first, then best-effort remove the
// tree, so a crash between the two never resurrects a deleted repo.
func (s *Store) DeleteRepoRow(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM repos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// GetRepo fetches a repo by id.
func (s *Store) GetRepo(ctx context.Context, id string) (Repo, error) {
	return scanRepo(s.reader.QueryRowContext(ctx,
		`SELECT id, namespace_id, name, description, folder_id, size_bytes, row_version, created_at, updated_at
		 FROM repos WHERE id = ?`, id))
}

// GetRepoByName resolves a repo by namespace and case-insensitive name.
func (s *Store) GetRepoByName(ctx context.Context, namespaceID, name string) (Repo, error) {
	return scanRepo(s.reader.QueryRowContext(ctx,
		`SELECT id, namespace_id, name, description, folder_id, size_bytes, row_version, created_at, updated_at
		 FROM repos WHERE namespace_id = ? AND name_ci = ?`, namespaceID, ciName(name)))
}

func scanRepo(row *sql.Row) (Repo, error) {
	var r Repo
	var folder sql.NullInt64
	if err := row.Scan(&r.ID, &r.NamespaceID, &r.Name, &r.Description, &folder, &r.SizeBytes, &r.RowVersion, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Repo{}, ErrNotFound
		}
		return Repo{}, err
	}
	r.FolderID = int64Ptr(folder)
	return r, nil
}

// UpdateRepoMeta updates description and/or folder, enforcing that the
// folder belongs to the repo's own namespace, plus an optional If-Match
// row-version check. It returns ErrConflict on a version mismatch.
func (s *Store) UpdateRepoMeta(ctx context.Context, id string, description *string, folderID *int64, folderSet bool, expectVersion *int64) (Repo, error) {
	var updated Repo
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.GetRepo(ctx, id)
		if err != nil {
			return err
		}
		if expectVersion != nil && *expectVersion != current.RowVersion {
			return ErrConflict
		}
		if folderSet && folderID != nil {
			var folderNS string
			if err := tx.QueryRowContext(ctx, `SELECT namespace_id FROM folders WHERE id = ?`, *folderID).Scan(&folderNS); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if folderNS != current.NamespaceID {
				return ErrCrossNamespace
			}
		}
		desc := current.Description
		if description != nil {
			desc = *description
		}
		folder := current.FolderID
		if folderSet {
			folder = folderID
		}
		now := NowMicros()
		res, err := tx.ExecContext(ctx,
			`UPDATE repos SET description = ?, folder_id = ?, row_version = row_version + 1, updated_at = ?
			 WHERE id = ? AND row_version = ?`,
			desc, nullInt64(folder), now, id, current.RowVersion)
		if err != nil {
			return err
		}
		if err := requireRowsAffected(res); err != nil {
			return ErrConflict
		}
		updated = current
		updated.Description, updated.FolderID, updated.UpdatedAt = desc, folder, now
		updated.RowVersion++
		return nil
	})
	if err != nil {
		return Repo{}, err
	}
	return updated, nil
}

// TouchRepoAfterPush updates updated_at and size_bytes following a
// successful git-receive-pack.
func (s *Store) TouchRepoAfterPush(ctx context.Context, id string, sizeBytes int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE repos SET size_bytes = ?, updated_at = ?, row_version = row_version + 1 WHERE id = ?`,
			sizeBytes, NowMicros(), id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListReposByNamespace returns a page of repos in a namespace.
func (s *Store) ListReposByNamespace(ctx context.Context, namespaceID string, page, perPage int) ([]Repo, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM repos WHERE namespace_id = ?`, namespaceID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, namespace_id, name, description, folder_id, size_bytes, row_version, created_at, updated_at
		 FROM repos WHERE namespace_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		namespaceID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Repo
	for rows.Next() {
		var r Repo
		var folder sql.NullInt64
		if err := rows.Scan(&r.ID, &r.NamespaceID, &r.Name, &r.Description, &folder, &r.SizeBytes, &r.RowVersion, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		r.FolderID = int64Ptr(folder)
		out = append(out, r)
	}
	return out, total, rows.Err()
}
