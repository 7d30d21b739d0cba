// Package permz is cutman's permission engine: a single Evaluate entry
// point that takes a principal, a target, and a required scope set, and
// returns an allow/deny decision. Handlers call this instead of
// scattering "if principal.IsAdmin" checks inline.
package permz

import (
	"context"
	"fmt"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/store"
)

// TargetKind distinguishes the two grantable resource types.
type TargetKind int

const (
	TargetNamespace TargetKind = iota
	TargetRepo
)

// Target identifies the resource a permission check is evaluated against.
type Target struct {
	Kind        TargetKind
	NamespaceID string // set for both kinds: the repo's own namespace for TargetRepo
	RepoID      string // set only for TargetRepo
}

// NamespaceTarget builds a Target for a namespace-scoped check.
func NamespaceTarget(namespaceID string) Target {
	return Target{Kind: TargetNamespace, NamespaceID: namespaceID}
}

// RepoTarget builds a Target for a repo-scoped check.
func RepoTarget(namespaceID, repoID string) Target {
	return Target{Kind: TargetRepo, NamespaceID: namespaceID, RepoID: repoID}
}

// Decision is the result of Evaluate: whether access is allowed, and why
// not when it isn't, for logging/debugging — never shown to the client
// verbatim (the handler maps a deny to a plain Forbidden).
type Decision struct {
	Allowed bool
	Reason  string
}

// Engine evaluates permission decisions against the persistence layer.
type Engine struct {
	store *store.Store
}

// New builds an Engine backed by st.
func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Evaluate applies the three-step access rule: admin bypass, then a
// union of ownership/namespace-grant/repo-grant scopes, then a subset
// check against required.
func (e *Engine) Evaluate(ctx context.Context, principal authn.Principal, target Target, required authn.ScopeSet) (Decision, error) {
	if principal.IsAdmin {
		return Decision{Allowed: true, Reason: "admin"}, nil
	}
	if principal.UserID == "" {
		return Decision{Allowed: false, Reason: "unauthenticated"}, nil
	}

	effective, err := e.EffectiveScopes(ctx, principal.UserID, target)
	if err != nil {
		return Decision{}, err
	}
	if effective.Has(required) {
		return Decision{Allowed: true, Reason: "scope grant"}, nil
	}
	return Decision{Allowed: false, Reason: fmt.Sprintf("missing scopes: have %s, need %s", effective, required)}, nil
}

// EffectiveScopes computes the union of scopes a user holds on a target:
// ownership-of-namespace implies every scope, plus any matching
// NamespaceGrant, plus (for a repo target) any matching RepoGrant.
func (e *Engine) EffectiveScopes(ctx context.Context, userID string, target Target) (authn.ScopeSet, error) {
	var effective authn.ScopeSet

	ns, err := e.store.GetNamespace(ctx, target.NamespaceID)
	if err != nil {
		return 0, err
	}
	if ns.OwnerUserID != nil && *ns.OwnerUserID == userID {
		effective = effective.Union(authn.ScopeSetAll)
	}

	if grant, err := e.store.GetNamespaceGrant(ctx, userID, target.NamespaceID); err == nil {
		effective = effective.Union(authn.ScopeSet(grant.AllowBits))
	} else if err != store.ErrNotFound {
		return 0, err
	}

	if target.Kind == TargetRepo {
		if grant, err := e.store.GetRepoGrant(ctx, userID, target.RepoID); err == nil {
			effective = effective.Union(authn.ScopeSet(grant.AllowBits))
		} else if err != store.ErrNotFound {
			return 0, err
		}
	}

	return effective, nil
}

// RequireRepoAdmin reports whether the principal can perform a
// repo:admin-or-owner operation (delete repo, rename/move, manage repo
// grants).
func (e *Engine) RequireRepoAdmin(ctx context.Context, principal authn.Principal, namespaceID, repoID string) (Decision, error) {
	return e.Evaluate(ctx, principal, RepoTarget(namespaceID, repoID), authn.NewScopeSet(authn.ScopeRepoAdmin))
}
