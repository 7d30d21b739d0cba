package permz

import (
	"context"
	"path/filepath"
	"testing"

	"cutman.dev/cutman/internal/authn"
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

func TestEvaluateAllowsAdminRegardlessOfScopes(t *testing.T) {
	st := newTestStore(t)
	e := New(st)

	ns, err := st.CreateNamespace(context.Background(), "acme", nil)
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}

	principal := authn.Principal{IsAdmin: true}
	decision, err := e.Evaluate(context.Background(), principal, NamespaceTarget(ns.ID), authn.NewScopeSet(authn.ScopeRepoAdmin))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected admin bypass to allow access, got %+v", decision)
	}
}

func TestEvaluateDeniesUnauthenticatedPrincipal(t *testing.T) {
	st := newTestStore(t)
	e := New(st)

	ns, err := st.CreateNamespace(context.Background(), "acme", nil)
	if err != nil {
		t.Fatalf("CreateNamespace: %v", err)
	}

	decision, err := e.Evaluate(context.Background(), authn.Principal{}, NamespaceTarget(ns.ID), authn.NewScopeSet(authn.ScopeNamespaceRead))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected unauthenticated principal to be denied, got %+v", decision)
	}
}

func TestEvaluateAllowsNamespaceOwnerEverything(t *testing.T) {
	st := newTestStore(t)
	e := New(st)
	ctx := context.Background()

	user, ns, err := st.CreateUserWithNamespace(ctx, "owner", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}

	principal := authn.Principal{UserID: user.ID}
	decision, err := e.Evaluate(ctx, principal, NamespaceTarget(ns.ID), authn.NewScopeSet(authn.ScopeRepoAdmin, authn.ScopeNamespaceWrite))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected namespace owner to hold every scope, got %+v", decision)
	}
}

func TestEvaluateDeniesUserWithoutGrant(t *testing.T) {
	st := newTestStore(t)
	e := New(st)
	ctx := context.Background()

	_, ownerNS, err := st.CreateUserWithNamespace(ctx, "owner", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}
	outsider, _, err := st.CreateUserWithNamespace(ctx, "outsider", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}

	principal := authn.Principal{UserID: outsider.ID}
	decision, err := e.Evaluate(ctx, principal, NamespaceTarget(ownerNS.ID), authn.NewScopeSet(authn.ScopeNamespaceRead))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected a user with no grant to be denied, got %+v", decision)
	}
}

func TestEvaluateAllowsUserWithMatchingNamespaceGrant(t *testing.T) {
	st := newTestStore(t)
	e := New(st)
	ctx := context.Background()

	_, ownerNS, err := st.CreateUserWithNamespace(ctx, "owner", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}
	collaborator, _, err := st.CreateUserWithNamespace(ctx, "collaborator", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}

	allowed := authn.NewScopeSet(authn.ScopeNamespaceRead, authn.ScopeRepoRead)
	if _, err := st.UpsertNamespaceGrant(ctx, collaborator.ID, ownerNS.ID, uint32(allowed)); err != nil {
		t.Fatalf("UpsertNamespaceGrant: %v", err)
	}

	principal := authn.Principal{UserID: collaborator.ID}
	decision, err := e.Evaluate(ctx, principal, NamespaceTarget(ownerNS.ID), authn.NewScopeSet(authn.ScopeRepoRead))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected granted scope to allow access, got %+v", decision)
	}

	decision, err = e.Evaluate(ctx, principal, NamespaceTarget(ownerNS.ID), authn.NewScopeSet(authn.ScopeRepoAdmin))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected an ungranted scope to be denied, got %+v", decision)
	}
}

func TestEffectiveScopesUnionsNamespaceAndRepoGrants(t *testing.T) {
	st := newTestStore(t)
	e := New(st)
	ctx := context.Background()

	_, ownerNS, err := st.CreateUserWithNamespace(ctx, "owner", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}
	repo, err := st.CreateRepo(ctx, ownerNS.ID, "widgets", "", nil)
	if err != nil {
		t.Fatalf("CreateRepo: %v", err)
	}
	collaborator, _, err := st.CreateUserWithNamespace(ctx, "collaborator", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}

	if _, err := st.UpsertNamespaceGrant(ctx, collaborator.ID, ownerNS.ID, uint32(authn.NewScopeSet(authn.ScopeNamespaceRead))); err != nil {
		t.Fatalf("UpsertNamespaceGrant: %v", err)
	}
	if _, err := st.UpsertRepoGrant(ctx, collaborator.ID, repo.ID, uint32(authn.NewScopeSet(authn.ScopeRepoAdmin))); err != nil {
		t.Fatalf("UpsertRepoGrant: %v", err)
	}

	scopes, err := e.EffectiveScopes(ctx, collaborator.ID, RepoTarget(ownerNS.ID, repo.ID))
	if err != nil {
		t.Fatalf("EffectiveScopes: %v", err)
	}
	if !scopes.Contains(authn.ScopeNamespaceRead) || !scopes.Contains(authn.ScopeRepoAdmin) {
		t.Fatalf("expected union of namespace and repo grants, got %s", scopes)
	}
}

func TestRequireRepoAdminDeniesPlainRepoReadGrant(t *testing.T) {
	st := newTestStore(t)
	e := New(st)
	ctx := context.Background()

	_, ownerNS, err := st.CreateUserWithNamespace(ctx, "owner", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}
	repo, err := st.CreateRepo(ctx, ownerNS.ID, "widgets", "", nil)
	if err != nil {
		t.Fatalf("CreateRepo: %v", err)
	}
	collaborator, _, err := st.CreateUserWithNamespace(ctx, "collaborator", false)
	if err != nil {
		t.Fatalf("CreateUserWithNamespace: %v", err)
	}
	if _, err := st.UpsertRepoGrant(ctx, collaborator.ID, repo.ID, uint32(authn.NewScopeSet(authn.ScopeRepoRead))); err != nil {
		t.Fatalf("UpsertRepoGrant: %v", err)
	}

	principal := authn.Principal{UserID: collaborator.ID}
	decision, err := e.RequireRepoAdmin(ctx, principal, ownerNS.ID, repo.ID)
	if err != nil {
		t.Fatalf("RequireRepoAdmin: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected a repo:read-only grant to fail a repo:admin check, got %+v", decision)
	}
}
