package content

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("skipping: git %v failed: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hello\n"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkg", "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial commit")
	return dir
}

func TestListRefs(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)

	refs, err := b.ListRefs(context.Background())
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	found := false
	for _, r := range refs {
		if r.Name == "refs/heads/main" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refs/heads/main in %v", refs)
	}
}

func TestResolveRevisionNotFound(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)

	if _, err := b.ResolveRevision(context.Background(), "does-not-exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCommitAndListTree(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	sha, err := b.ResolveRevision(ctx, "main")
	if err != nil {
		t.Fatalf("ResolveRevision: %v", err)
	}

	c, err := b.GetCommit(ctx, sha)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if c.Message != "initial commit" {
		t.Fatalf("unexpected message: %q", c.Message)
	}
	if len(c.Parents) != 0 {
		t.Fatalf("expected root commit to have no parents, got %v", c.Parents)
	}

	entries, err := b.ListTree(ctx, "main", "")
	if err != nil {
		t.Fatalf("ListTree: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["README.md"] || !names["pkg"] {
		t.Fatalf("unexpected tree entries: %v", entries)
	}
}

func TestGetBlobAndIsBinary(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	sha, err := b.ResolveRevision(ctx, "main:README.md")
	if err != nil {
		t.Fatalf("ResolveRevision: %v", err)
	}

	var buf bytes.Buffer
	if err := b.GetBlob(ctx, sha, &buf); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if buf.String() != "# hello\n" {
		t.Fatalf("unexpected blob content: %q", buf.String())
	}

	binary, err := b.IsBinary(ctx, sha)
	if err != nil {
		t.Fatalf("IsBinary: %v", err)
	}
	if binary {
		t.Fatal("expected README.md to be detected as text")
	}
}

func TestReadmeFindsCaseInsensitiveCandidate(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	entry, err := b.Readme(ctx, "main")
	if err != nil {
		t.Fatalf("Readme: %v", err)
	}
	if entry == nil || entry.Name != "README.md" {
		t.Fatalf("expected README.md, got %v", entry)
	}
}

func TestListCommits(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	commits, err := b.ListCommits(ctx, "main", 10)
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(commits))
	}
}
