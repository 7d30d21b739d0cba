package store

import (
	"context"
	"database/sql"
)

// AuditEntry mirrors a row in audit_log: an append-only record of one
// privileged mutation.
type AuditEntry struct {
	ID         int64
	Ts         int64
	RequestID  string
	ActorID    *string
	Event      string
	FieldsJSON string
}

// RecordAudit appends one audit entry. Audit writes never roll back a
// caller's own transaction: failures are the caller's to decide on, since
// losing an audit line must never block the mutation it describes.
func (s *Store) RecordAudit(ctx context.Context, requestID string, actorID *string, event, fieldsJSON string) error {
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO audit_log (ts, request_id, actor_id, event, fields_json) VALUES (?, ?, ?, ?, ?)`,
		NowMicros(), requestID, nullString(actorID), event, fieldsJSON)
	return err
}

// ListAudit returns a page of audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, page, perPage int) ([]AuditEntry, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM audit_log`)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, ts, request_id, actor_id, event, fields_json FROM audit_log ORDER BY id DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &e.Ts, &e.RequestID, &actor, &e.Event, &e.FieldsJSON); err != nil {
			return nil, 0, err
		}
		e.ActorID = strPtr(actor)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
