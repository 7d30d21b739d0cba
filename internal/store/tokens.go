package store

import (
	"context"
	"database/sql"
	"errors"

	"cutman.dev/cutman/internal/ids"
)

// CreateToken inserts a token row. userID nil marks the admin-root token.
func (s *Store) CreateToken(ctx context.Context, userID *string, lookup, secretHash, description string) (Token, error) {
	tok := Token{ID: ids.New(), UserID: userID, TokenLookup: lookup, SecretHash: secretHash, Description: description, CreatedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tokens (id, user_id, token_lookup, secret_hash, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tok.ID, nullString(tok.UserID), tok.TokenLookup, tok.SecretHash, tok.Description, tok.CreatedAt,
		)
		return mapUniqueErr(err, ErrConflict)
	})
	if err != nil {
		return Token{}, err
	}
	return tok, nil
}

// GetToken fetches a token by id.
func (s *Store) GetToken(ctx context.Context, id string) (Token, error) {
	return scanToken(s.reader.QueryRowContext(ctx,
		`SELECT id, user_id, token_lookup, secret_hash, description, created_at, last_used_at, revoked_at
		 FROM tokens WHERE id = ?`, id))
}

// GetTokenByLookup fetches the candidate token row for a presented
// secret's clear-text lookup prefix.
func (s *Store) GetTokenByLookup(ctx context.Context, lookup string) (Token, error) {
	return scanToken(s.reader.QueryRowContext(ctx,
		`SELECT id, user_id, token_lookup, secret_hash, description, created_at, last_used_at, revoked_at
		 FROM tokens WHERE token_lookup = ?`, lookup))
}

func scanToken(row *sql.Row) (Token, error) {
	var t Token
	var userID, lastUsed, revoked sql.NullString
	var lastUsedI, revokedI sql.NullInt64
	_ = lastUsed
	_ = revoked
	if err := row.Scan(&t.ID, &userID, &t.TokenLookup, &t.SecretHash, &t.Description, &t.CreatedAt, &lastUsedI, &revokedI); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, err
	}
	t.UserID = strPtr(userID)
	t.LastUsedAt = int64Ptr(lastUsedI)
	t.RevokedAt = int64Ptr(revokedI)
	return t, nil
}

// RevokeToken sets revoked_at if not already set. Idempotent.
func (s *Store) RevokeToken(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, NowMicros(), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Already revoked or missing; distinguish by existence so callers
			// still get NotFound for a bad id.
			if _, err := s.GetToken(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListTokensByUser lists non-admin tokens belonging to a user.
func (s *Store) ListTokensByUser(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, user_id, token_lookup, secret_hash, description, created_at, last_used_at, revoked_at
		 FROM tokens WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		var userID sql.NullString
		var lastUsedI, revokedI sql.NullInt64
		if err := rows.Scan(&t.ID, &userID, &t.TokenLookup, &t.SecretHash, &t.Description, &t.CreatedAt, &lastUsedI, &revokedI); err != nil {
			return nil, err
		}
		t.UserID = strPtr(userID)
		t.LastUsedAt = int64Ptr(lastUsedI)
		t.RevokedAt = int64Ptr(revokedI)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TouchTokenAsync schedules a best-effort last_used_at update. It never
// blocks the caller and silently drops updates if the background worker's
// channel is full; nothing depends on this timestamp for correctness.
func (s *Store) TouchTokenAsync(tokenID string) {
	select {
	case s.touchCh <- tokenID:
	default:
	}
}

// runTouchWorker drains touch requests and applies each one as its own
// update. It exits when ctx is cancelled.
func (s *Store) runTouchWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.touchCh:
			_, _ = s.writer.ExecContext(ctx, `UPDATE tokens SET last_used_at = ? WHERE id = ?`, NowMicros(), id)
		}
	}
}
