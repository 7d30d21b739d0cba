package store

import (
	"context"
	"database/sql"
	"errors"

	"cutman.dev/cutman/internal/ids"
)

// CreateNamespace inserts a shared namespace. Personal namespaces are only
// created via CreateUserWithNamespace.
func (s *Store) CreateNamespace(ctx context.Context, name string, repoLimit *int64) (Namespace, error) {
	ns := Namespace{ID: ids.New(), Name: name, Kind: NamespaceShared, OwnerUserID: nil, RepoLimit: repoLimit, CreatedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO namespaces (id, name, name_ci, kind, owner_user_id, repo_limit, created_at)
			 VALUES (?, ?, ?, ?, NULL, ?, ?)`,
			ns.ID, ns.Name, ciName(ns.Name), ns.Kind, nullInt64(ns.RepoLimit), ns.CreatedAt,
		)
		return mapUniqueErr(err, ErrAlreadyExists)
	})
	if err != nil {
		return Namespace{}, err
	}
	return ns, nil
}

// GetNamespace fetches a namespace by id.
func (s *Store) GetNamespace(ctx context.Context, id string) (Namespace, error) {
	return scanNamespace(s.reader.QueryRowContext(ctx,
		`SELECT id, name, kind, owner_user_id, repo_limit, created_at FROM namespaces WHERE id = ?`, id))
}

// GetNamespaceByName resolves a namespace by its case-insensitive name.
func (s *Store) GetNamespaceByName(ctx context.Context, name string) (Namespace, error) {
	return scanNamespace(s.reader.QueryRowContext(ctx,
		`SELECT id, name, kind, owner_user_id, repo_limit, created_at FROM namespaces WHERE name_ci = ?`, ciName(name)))
}

func scanNamespace(row *sql.Row) (Namespace, error) {
	var ns Namespace
	var owner sql.NullString
	var limit sql.NullInt64
	if err := row.Scan(&ns.ID, &ns.Name, &ns.Kind, &owner, &limit, &ns.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Namespace{}, ErrNotFound
		}
		return Namespace{}, err
	}
	ns.OwnerUserID = strPtr(owner)
	ns.RepoLimit = int64Ptr(limit)
	return ns, nil
}

// DeleteNamespace removes a namespace row. Repos, folders, tags, and grants
// cascade per the schema.
func (s *Store) DeleteNamespace(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// SetRepoLimit updates the repo_limit on a namespace (nil clears it).
func (s *Store) SetRepoLimit(ctx context.Context, id string, limit *int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE namespaces SET repo_limit = ? WHERE id = ?`, nullInt64(limit), id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListNamespaces returns a page of namespaces.
func (s *Store) ListNamespaces(ctx context.Context, page, perPage int) ([]Namespace, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM namespaces`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, name, kind, owner_user_id, repo_limit, created_at FROM namespaces ORDER BY id LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var ns Namespace
		var owner sql.NullString
		var limit sql.NullInt64
		if err := rows.Scan(&ns.ID, &ns.Name, &ns.Kind, &owner, &limit, &ns.CreatedAt); err != nil {
			return nil, 0, err
		}
		ns.OwnerUserID = strPtr(owner)
		ns.RepoLimit = int64Ptr(limit)
		out = append(out, ns)
	}
	return out, total, rows.Err()
}

// RepoCount returns the number of repos currently in a namespace, used to
// enforce invariant 6 (repo_limit) outside the insert's own race-free check.
func (s *Store) RepoCount(ctx context.Context, namespaceID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM repos WHERE namespace_id = ?`, namespaceID)
}
