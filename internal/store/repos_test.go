package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCreateRepoRejectsRepoLimitExceeded(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT repo_limit FROM namespaces WHERE id").
		WithArgs("ns-1").
		WillReturnRows(sqlmock.NewRows([]string{"repo_limit"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM repos WHERE namespace_id").
		WithArgs("ns-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := st.CreateRepo(context.Background(), "ns-1", "repo-1", "", nil)
	if err != ErrRepoLimit {
		t.Fatalf("expected ErrRepoLimit, got %v", err)
	}
}

func TestCreateRepoRejectsCrossNamespaceFolder(t *testing.T) {
	st, mock := newMockStore(t)

	folderID := int64(9)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT repo_limit FROM namespaces WHERE id").
		WithArgs("ns-1").
		WillReturnRows(sqlmock.NewRows([]string{"repo_limit"}).AddRow(nil))
	mock.ExpectQuery("SELECT namespace_id FROM folders WHERE id").
		WithArgs(folderID).
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}).AddRow("ns-2"))
	mock.ExpectRollback()

	_, err := st.CreateRepo(context.Background(), "ns-1", "repo-1", "", &folderID)
	if err != ErrCrossNamespace {
		t.Fatalf("expected ErrCrossNamespace, got %v", err)
	}
}

func TestUpdateRepoMetaRejectsVersionMismatch(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, namespace_id, name, description, folder_id, size_bytes, row_version, created_at, updated_at.*FROM repos WHERE id").
		WithArgs("repo-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "namespace_id", "name", "description", "folder_id", "size_bytes", "row_version", "created_at", "updated_at",
		}).AddRow("repo-1", "ns-1", "repo-1", "", nil, int64(0), int64(3), int64(0), int64(0)))
	mock.ExpectRollback()

	expect := int64(2)
	_, err := st.UpdateRepoMeta(context.Background(), "repo-1", nil, nil, false, &expect)
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetRepoByNameNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, namespace_id, name, description, folder_id, size_bytes, row_version, created_at, updated_at.*FROM repos WHERE namespace_id").
		WithArgs("ns-1", "missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "namespace_id", "name", "description", "folder_id", "size_bytes", "row_version", "created_at", "updated_at",
		}))

	_, err := st.GetRepoByName(context.Background(), "ns-1", "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
