package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUpsertNamespaceGrantUpserts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO namespace_grants").
		WithArgs("user-1", "ns-1", uint32(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	grant, err := st.UpsertNamespaceGrant(context.Background(), "user-1", "ns-1", 3)
	if err != nil {
		t.Fatalf("UpsertNamespaceGrant: %v", err)
	}
	if grant.AllowBits != 3 {
		t.Fatalf("unexpected allow bits: %d", grant.AllowBits)
	}
}

func TestGetRepoGrantNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT allow_bits, granted_at FROM repo_grants WHERE user_id").
		WithArgs("user-1", "repo-1").
		WillReturnRows(sqlmock.NewRows([]string{"allow_bits", "granted_at"}))

	_, err := st.GetRepoGrant(context.Background(), "user-1", "repo-1")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteNamespaceGrantIsNotFoundWhenAbsent(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM namespace_grants").
		WithArgs("user-1", "ns-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.DeleteNamespaceGrant(context.Background(), "user-1", "ns-1")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
