package store

import (
	"context"
	"database/sql"
	"errors"

	"cutman.dev/cutman/internal/ids"
)

// CreateTag inserts a tag.
func (s *Store) CreateTag(ctx context.Context, namespaceID, name, color string) (Tag, error) {
	t := Tag{ID: ids.New(), NamespaceID: namespaceID, Name: name, Color: color, CreatedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, namespace_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.NamespaceID, t.Name, t.Color, t.CreatedAt)
		return mapUniqueErr(err, ErrAlreadyExists)
	})
	if err != nil {
		return Tag{}, err
	}
	return t, nil
}

// GetTag fetches a tag by id.
func (s *Store) GetTag(ctx context.Context, id string) (Tag, error) {
	var t Tag
	err := s.reader.QueryRowContext(ctx,
		`SELECT id, namespace_id, name, color, created_at FROM tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.NamespaceID, &t.Name, &t.Color, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, err
	}
	return t, nil
}

// DeleteTag removes a tag; RepoTag rows cascade.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListTags returns every tag defined in a namespace.
func (s *Store) ListTags(ctx context.Context, namespaceID string) ([]Tag, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, namespace_id, name, color, created_at FROM tags WHERE namespace_id = ? ORDER BY name`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.NamespaceID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AttachTag links a repo and a tag, enforcing invariant 5 (shared
// namespace) inside the transaction.
func (s *Store) AttachTag(ctx context.Context, repoID, tagID string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var repoNS, tagNS string
		if err := tx.QueryRowContext(ctx, `SELECT namespace_id FROM repos WHERE id = ?`, repoID).Scan(&repoNS); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT namespace_id FROM tags WHERE id = ?`, tagID).Scan(&tagNS); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if repoNS != tagNS {
			return ErrCrossNamespace
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO repo_tags (repo_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, repoID, tagID)
		return err
	})
}

// DetachTag unlinks a repo and a tag. Idempotent.
func (s *Store) DetachTag(ctx context.Context, repoID, tagID string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM repo_tags WHERE repo_id = ? AND tag_id = ?`, repoID, tagID)
		return err
	})
}

// ListRepoTags returns the tags attached to a repo.
func (s *Store) ListRepoTags(ctx context.Context, repoID string) ([]Tag, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT t.id, t.namespace_id, t.name, t.color, t.created_at
		 FROM tags t JOIN repo_tags rt ON rt.tag_id = t.id
		 WHERE rt.repo_id = ? ORDER BY t.name`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.NamespaceID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
