package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cutman.dev/cutman/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cutman.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCanonicalizeSlugRejectsBadGrammar(t *testing.T) {
	cases := []string{"", ".", "..", "UPPER CASE", "../escape", "a/b"}
	for _, in := range cases {
		if _, err := CanonicalizeSlug(in); !errors.Is(err, ErrInvalidSlug) {
			t.Fatalf("CanonicalizeSlug(%q): expected ErrInvalidSlug, got %v", in, err)
		}
	}
}

func TestCanonicalizeSlugLowercases(t *testing.T) {
	got, err := CanonicalizeSlug("My-Repo")
	if err != nil {
		t.Fatalf("CanonicalizeSlug: %v", err)
	}
	if got != "my-repo" {
		t.Fatalf("got %q, want my-repo", got)
	}
}

func TestCanonicalizePathSplitsAndValidatesEverySegment(t *testing.T) {
	segs, err := CanonicalizePath("Docs/API-Guides")
	if err != nil {
		t.Fatalf("CanonicalizePath: %v", err)
	}
	want := []string{"docs", "api-guides"}
	if len(segs) != len(want) {
		t.Fatalf("got %v, want %v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("got %v, want %v", segs, want)
		}
	}
}

func TestCanonicalizePathRejectsBadSegment(t *testing.T) {
	if _, err := CanonicalizePath("docs/../etc"); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestCanonicalizePathEmptyIsRoot(t *testing.T) {
	segs, err := CanonicalizePath("/")
	if err != nil {
		t.Fatalf("CanonicalizePath: %v", err)
	}
	if segs != nil {
		t.Fatalf("expected nil segments for the root path, got %v", segs)
	}
}

func TestNamespaceResolvesByNameAndByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateNamespace(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}

	byName, err := Namespace(ctx, st, "acme")
	if err != nil {
		t.Fatalf("Namespace by name: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("resolved wrong namespace by name")
	}

	byID, err := Namespace(ctx, st, created.ID)
	if err != nil {
		t.Fatalf("Namespace by id: %v", err)
	}
	if byID.ID != created.ID {
		t.Fatalf("resolved wrong namespace by id")
	}
}

func TestNamespaceNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := Namespace(context.Background(), st, "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoByIDResolvesNamespace(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ns, err := st.CreateNamespace(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}
	repo, err := st.CreateRepo(ctx, ns.ID, "widgets", "", nil)
	if err != nil {
		t.Fatalf("CreateRepo: %v", err)
	}

	gotNS, gotRepo, err := RepoByID(ctx, st, repo.ID)
	if err != nil {
		t.Fatalf("RepoByID: %v", err)
	}
	if gotNS.ID != ns.ID || gotRepo.ID != repo.ID {
		t.Fatalf("resolved wrong namespace/repo pair")
	}
}
