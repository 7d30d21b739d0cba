package store

import (
	"database/sql"
	"strings"
)

// ciName returns the case-folded form of a slug used to enforce
// case-insensitive uniqueness through a plain unique index rather than a
// COLLATE NOCASE comparison on every query.
func ciName(name string) string {
	return strings.ToLower(name)
}

// mapUniqueErr rewrites a SQLite UNIQUE/CHECK constraint failure into want,
// passing through any other error unchanged.
func mapUniqueErr(err error, want error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed") {
		return want
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
