package store

import (
	"context"
	"database/sql"
	"errors"

	"cutman.dev/cutman/internal/ids"
	"cutman.dev/cutman/internal/slug"
)

// CreateUserWithNamespace inserts a user and its personal namespace in
// one transaction: a user always owns exactly one personal namespace,
// created alongside it so the two can never diverge. username is
// canonicalized through the same slug grammar as a repo or namespace
// name, since it becomes the personal namespace's name and a path
// segment callers resolve by.
func (s *Store) CreateUserWithNamespace(ctx context.Context, username string, isAdmin bool) (User, Namespace, error) {
	canonicalUsername, err := slug.Canonicalize(username)
	if err != nil {
		return User{}, Namespace{}, err
	}

	userID := ids.New()
	nsID := ids.New()
	now := NowMicros()

	ns := Namespace{ID: nsID, Name: canonicalUsername, Kind: NamespacePersonal, OwnerUserID: &userID, CreatedAt: now}
	user := User{ID: userID, Username: canonicalUsername, CreatedAt: now, PrimaryNamespaceID: nsID, IsAdmin: isAdmin}

	err = s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Insert the namespace first with a temporary owner-less row is not
		// possible (owner_user_id references users), so the user row and
		// namespace row are inserted with foreign_keys deferred only within
		// this single statement batch by inserting the user first against a
		// namespace id that does not exist yet, then backfilling: SQLite
		// enforces FKs per-statement, so instead we insert the namespace
		// with owner_user_id NULL, then the user, then patch the owner.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO namespaces (id, name, name_ci, kind, owner_user_id, repo_limit, created_at)
			 VALUES (?, ?, ?, ?, NULL, NULL, ?)`,
			ns.ID, ns.Name, ciName(ns.Name), ns.Kind, ns.CreatedAt,
		); err != nil {
			return mapUniqueErr(err, ErrAlreadyExists)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, created_at, primary_namespace_id, is_admin)
			 VALUES (?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.CreatedAt, user.PrimaryNamespaceID, boolInt(user.IsAdmin),
		); err != nil {
			return mapUniqueErr(err, ErrAlreadyExists)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE namespaces SET owner_user_id = ? WHERE id = ?`, userID, nsID,
		); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return User{}, Namespace{}, err
	}
	return user, ns, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.reader.QueryRowContext(ctx,
		`SELECT id, username, created_at, primary_namespace_id, is_admin FROM users WHERE id = ?`, id))
}

// GetUserByUsername fetches a user by its exact (already-canonical) username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.reader.QueryRowContext(ctx,
		`SELECT id, username, created_at, primary_namespace_id, is_admin FROM users WHERE username = ?`, username))
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var isAdmin int
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.PrimaryNamespaceID, &isAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.IsAdmin = isAdmin != 0
	return u, nil
}

// DeleteUser removes a user row. The personal namespace, its repos,
// folders, tags, and grants all cascade per the schema's ON DELETE CASCADE
// chain (invariant 2).
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListUsers returns a page of users ordered by creation (id is a ULID, so
// this is also insertion order).
func (s *Store) ListUsers(ctx context.Context, page, perPage int) ([]User, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, username, created_at, primary_namespace_id, is_admin FROM users ORDER BY id LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var isAdmin int
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.PrimaryNamespaceID, &isAdmin); err != nil {
			return nil, 0, err
		}
		u.IsAdmin = isAdmin != 0
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.reader.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
