package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCreateFolderRejectsCrossNamespaceParent(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT namespace_id FROM folders WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}).AddRow("other-ns"))
	mock.ExpectRollback()

	parentID := int64(7)
	_, err := st.CreateFolder(context.Background(), "ns-1", &parentID, "docs")
	if err != ErrCrossNamespace {
		t.Fatalf("expected ErrCrossNamespace, got %v", err)
	}
}

func TestMoveFolderRejectsSelfParent(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, namespace_id, parent_id, name, created_at FROM folders WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "namespace_id", "parent_id", "name", "created_at"}).
			AddRow(int64(5), "ns-1", nil, "docs", int64(0)))
	mock.ExpectRollback()

	err := st.MoveFolder(context.Background(), 5, int64Ptr2(5))
	if err != ErrFolderCycle {
		t.Fatalf("expected ErrFolderCycle, got %v", err)
	}
}

func int64Ptr2(v int64) *int64 { return &v }
