package store

import (
	"context"
	"database/sql"
	"errors"
)

// UpsertNamespaceGrant creates or replaces a user's scope grant on a
// namespace. allowBits is the ScopeSet bitmask from the authn package,
// passed through opaquely since store must not import authn (authn
// depends on store for lookups).
func (s *Store) UpsertNamespaceGrant(ctx context.Context, userID, namespaceID string, allowBits uint32) (Grant, error) {
	g := Grant{UserID: userID, TargetID: namespaceID, AllowBits: allowBits, GrantedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO namespace_grants (user_id, namespace_id, allow_bits, granted_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, namespace_id) DO UPDATE SET allow_bits = excluded.allow_bits, granted_at = excluded.granted_at`,
			g.UserID, g.TargetID, g.AllowBits, g.GrantedAt)
		return err
	})
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// GetNamespaceGrant fetches a user's grant on a namespace.
func (s *Store) GetNamespaceGrant(ctx context.Context, userID, namespaceID string) (Grant, error) {
	var g Grant
	g.UserID, g.TargetID = userID, namespaceID
	err := s.reader.QueryRowContext(ctx,
		`SELECT allow_bits, granted_at FROM namespace_grants WHERE user_id = ? AND namespace_id = ?`,
		userID, namespaceID,
	).Scan(&g.AllowBits, &g.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, ErrNotFound
	}
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// DeleteNamespaceGrant removes a user's grant on a namespace.
func (s *Store) DeleteNamespaceGrant(ctx context.Context, userID, namespaceID string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM namespace_grants WHERE user_id = ? AND namespace_id = ?`, userID, namespaceID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListNamespaceGrants lists every grant on a namespace.
func (s *Store) ListNamespaceGrants(ctx context.Context, namespaceID string) ([]Grant, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT user_id, allow_bits, granted_at FROM namespace_grants WHERE namespace_id = ? ORDER BY user_id`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		g := Grant{TargetID: namespaceID}
		if err := rows.Scan(&g.UserID, &g.AllowBits, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpsertRepoGrant creates or replaces a user's scope grant on a repo.
func (s *Store) UpsertRepoGrant(ctx context.Context, userID, repoID string, allowBits uint32) (Grant, error) {
	g := Grant{UserID: userID, TargetID: repoID, AllowBits: allowBits, GrantedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO repo_grants (user_id, repo_id, allow_bits, granted_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (user_id, repo_id) DO UPDATE SET allow_bits = excluded.allow_bits, granted_at = excluded.granted_at`,
			g.UserID, g.TargetID, g.AllowBits, g.GrantedAt)
		return err
	})
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// GetRepoGrant fetches a user's grant on a repo.
func (s *Store) GetRepoGrant(ctx context.Context, userID, repoID string) (Grant, error) {
	var g Grant
	g.UserID, g.TargetID = userID, repoID
	err := s.reader.QueryRowContext(ctx,
		`SELECT allow_bits, granted_at FROM repo_grants WHERE user_id = ? AND repo_id = ?`,
		userID, repoID,
	).Scan(&g.AllowBits, &g.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, ErrNotFound
	}
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

// DeleteRepoGrant removes a user's grant on a repo.
func (s *Store) DeleteRepoGrant(ctx context.Context, userID, repoID string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM repo_grants WHERE user_id = ? AND repo_id = ?`, userID, repoID)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListRepoGrants lists every grant on a repo.
func (s *Store) ListRepoGrants(ctx context.Context, repoID string) ([]Grant, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT user_id, allow_bits, granted_at FROM repo_grants WHERE repo_id = ? ORDER BY user_id`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		g := Grant{TargetID: repoID}
		if err := rows.Scan(&g.UserID, &g.AllowBits, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
