package store

import (
	"context"
	"database/sql"
	"errors"
)

// MaxFolderDepth bounds the ancestry walk used for cycle detection,
// rather than relying on recursive SQL to terminate on its own.
const MaxFolderDepth = 32

// CreateFolder inserts a folder. If parentID is set, it must reference a
// folder in the same namespace (invariant 3); the caller is responsible for
// cycle safety, which is structural on insert since a new row cannot yet be
// its own ancestor.
func (s *Store) CreateFolder(ctx context.Context, namespaceID string, parentID *int64, name string) (Folder, error) {
	f := Folder{NamespaceID: namespaceID, ParentID: parentID, Name: name, CreatedAt: NowMicros()}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if parentID != nil {
			var parentNS string
			if err := tx.QueryRowContext(ctx, `SELECT namespace_id FROM folders WHERE id = ?`, *parentID).Scan(&parentNS); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if parentNS != namespaceID {
				return ErrCrossNamespace
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO folders (namespace_id, parent_id, name, created_at) VALUES (?, ?, ?, ?)`,
			f.NamespaceID, nullInt64(f.ParentID), f.Name, f.CreatedAt)
		if err != nil {
			return mapUniqueErr(err, ErrAlreadyExists)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		f.ID = id
		return nil
	})
	if err != nil {
		return Folder{}, err
	}
	return f, nil
}

// GetFolder fetches a folder by id.
func (s *Store) GetFolder(ctx context.Context, id int64) (Folder, error) {
	return scanFolder(s.reader.QueryRowContext(ctx,
		`SELECT id, namespace_id, parent_id, name, created_at FROM folders WHERE id = ?`, id))
}

// GetFolderByPath resolves a single path segment under parentID (nil for
// root) within a namespace.
func (s *Store) GetFolderByPath(ctx context.Context, namespaceID string, parentID *int64, name string) (Folder, error) {
	var row *sql.Row
	if parentID == nil {
		row = s.reader.QueryRowContext(ctx,
			`SELECT id, namespace_id, parent_id, name, created_at FROM folders
			 WHERE namespace_id = ? AND parent_id IS NULL AND name = ?`, namespaceID, name)
	} else {
		row = s.reader.QueryRowContext(ctx,
			`SELECT id, namespace_id, parent_id, name, created_at FROM folders
			 WHERE namespace_id = ? AND parent_id = ? AND name = ?`, namespaceID, *parentID, name)
	}
	return scanFolder(row)
}

func scanFolder(row *sql.Row) (Folder, error) {
	var f Folder
	var parent sql.NullInt64
	if err := row.Scan(&f.ID, &f.NamespaceID, &parent, &f.Name, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Folder{}, ErrNotFound
		}
		return Folder{}, err
	}
	f.ParentID = int64Ptr(parent)
	return f, nil
}

// MoveFolder reparents a folder, rejecting the move if newParentID's
// ancestry includes id (invariant 3: no cycles) or crosses namespaces.
func (s *Store) MoveFolder(ctx context.Context, id int64, newParentID *int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		f, err := s.GetFolder(ctx, id)
		if err != nil {
			return err
		}
		if newParentID != nil {
			if *newParentID == id {
				return ErrFolderCycle
			}
			ancestry, err := s.FolderAncestry(ctx, *newParentID)
			if err != nil {
				return err
			}
			for _, a := range ancestry {
				if a == id {
					return ErrFolderCycle
				}
			}
			parent, err := s.GetFolder(ctx, *newParentID)
			if err != nil {
				return err
			}
			if parent.NamespaceID != f.NamespaceID {
				return ErrCrossNamespace
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE folders SET parent_id = ? WHERE id = ?`, nullInt64(newParentID), id)
		return mapUniqueErr(err, ErrAlreadyExists)
	})
}

// FolderAncestry walks parent_id from id up to the root, bounded at
// MaxFolderDepth, returning ids from nearest parent to root (not including
// id itself).
func (s *Store) FolderAncestry(ctx context.Context, id int64) ([]int64, error) {
	var out []int64
	current := id
	for depth := 0; depth < MaxFolderDepth; depth++ {
		f, err := s.GetFolder(ctx, current)
		if err != nil {
			return nil, err
		}
		if f.ParentID == nil {
			return out, nil
		}
		out = append(out, *f.ParentID)
		current = *f.ParentID
	}
	return nil, errors.New("store: folder ancestry exceeds max depth")
}

// DeleteFolder removes a folder. Child folders cascade; repos referencing
// it have their folder_id set to NULL (ON DELETE SET NULL).
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRowsAffected(res)
	})
}

// ListFolders returns every folder in a namespace.
func (s *Store) ListFolders(ctx context.Context, namespaceID string) ([]Folder, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, namespace_id, parent_id, name, created_at FROM folders WHERE namespace_id = ? ORDER BY id`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Folder
	for rows.Next() {
		var f Folder
		var parent sql.NullInt64
		if err := rows.Scan(&f.ID, &f.NamespaceID, &parent, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.ParentID = int64Ptr(parent)
		out = append(out, f)
	}
	return out, rows.Err()
}
