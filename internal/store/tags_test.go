package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAttachTagRejectsCrossNamespace(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT namespace_id FROM repos WHERE id").
		WithArgs("repo-1").
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}).AddRow("ns-1"))
	mock.ExpectQuery("SELECT namespace_id FROM tags WHERE id").
		WithArgs("tag-1").
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}).AddRow("ns-2"))
	mock.ExpectRollback()

	err := st.AttachTag(context.Background(), "repo-1", "tag-1")
	if err != ErrCrossNamespace {
		t.Fatalf("expected ErrCrossNamespace, got %v", err)
	}
}

func TestAttachTagRejectsMissingTag(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT namespace_id FROM repos WHERE id").
		WithArgs("repo-1").
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}).AddRow("ns-1"))
	mock.ExpectQuery("SELECT namespace_id FROM tags WHERE id").
		WithArgs("missing-tag").
		WillReturnRows(sqlmock.NewRows([]string{"namespace_id"}))
	mock.ExpectRollback()

	err := st.AttachTag(context.Background(), "repo-1", "missing-tag")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTagInsertsRow(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tags").
		WithArgs(sqlmock.AnyArg(), "ns-1", "release", "#00ff00", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tag, err := st.CreateTag(context.Background(), "ns-1", "release", "#00ff00")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if tag.Name != "release" {
		t.Fatalf("unexpected tag: %+v", tag)
	}
}
