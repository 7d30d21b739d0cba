// Package resolve is cutman's resource resolver: it translates path
// segments — opaque ids or human names — into entities, and canonicalizes
// folder paths into validated slug sequences.
package resolve

import (
	"context"
	"errors"
	"strings"

	"cutman.dev/cutman/internal/slug"
	"cutman.dev/cutman/internal/store"
)

// ErrNotFound is returned when a path segment cannot be resolved to an
// entity. Handlers should return it as-is rather than masking it as
// Unauthorized, since scope evaluation already gates access.
var ErrNotFound = errors.New("resolve: not found")

// ErrInvalidSlug is returned when a segment fails the slug grammar. It is
// the same error internal/slug and internal/store return, so callers can
// errors.Is against this one name regardless of which layer caught it.
var ErrInvalidSlug = slug.ErrInvalid

// CanonicalizeSlug normalizes a single path segment: NFC-normalize,
// lowercase, reject empty/./../bad-grammar. It operates on one segment,
// not a full path.
func CanonicalizeSlug(segment string) (string, error) {
	return slug.Canonicalize(segment)
}

// CanonicalizePath splits a slash-separated folder path into canonical
// slug segments, rejecting any segment that fails CanonicalizeSlug.
func CanonicalizePath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		seg, err := CanonicalizeSlug(p)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// Namespace resolves a namespace by opaque id or by name. Ids in this
// system are ULIDs, which are never valid slugs on their own grammar only
// incidentally (uppercase Crockford base32) — so the resolver tries id
// first only when the candidate looks like one, then falls back to name.
func Namespace(ctx context.Context, st *store.Store, idOrName string) (store.Namespace, error) {
	if looksLikeID(idOrName) {
		if ns, err := st.GetNamespace(ctx, idOrName); err == nil {
			return ns, nil
		} else if err != store.ErrNotFound {
			return store.Namespace{}, err
		}
	}
	ns, err := st.GetNamespaceByName(ctx, idOrName)
	if err != nil {
		if err == store.ErrNotFound {
			return store.Namespace{}, ErrNotFound
		}
		return store.Namespace{}, err
	}
	return ns, nil
}

// Repo resolves "{namespace}/{repo}" against either id-or-name segments.
func Repo(ctx context.Context, st *store.Store, namespaceIDOrName, repoIDOrName string) (store.Namespace, store.Repo, error) {
	ns, err := Namespace(ctx, st, namespaceIDOrName)
	if err != nil {
		return store.Namespace{}, store.Repo{}, err
	}
	if looksLikeID(repoIDOrName) {
		if r, err := st.GetRepo(ctx, repoIDOrName); err == nil && r.NamespaceID == ns.ID {
			return ns, r, nil
		} else if err != nil && err != store.ErrNotFound {
			return store.Namespace{}, store.Repo{}, err
		}
	}
	r, err := st.GetRepoByName(ctx, ns.ID, repoIDOrName)
	if err != nil {
		if err == store.ErrNotFound {
			return store.Namespace{}, store.Repo{}, ErrNotFound
		}
		return store.Namespace{}, store.Repo{}, err
	}
	return ns, r, nil
}

// RepoByID resolves a repo directly by its opaque id, plus its namespace.
func RepoByID(ctx context.Context, st *store.Store, repoID string) (store.Namespace, store.Repo, error) {
	r, err := st.GetRepo(ctx, repoID)
	if err != nil {
		if err == store.ErrNotFound {
			return store.Namespace{}, store.Repo{}, ErrNotFound
		}
		return store.Namespace{}, store.Repo{}, err
	}
	ns, err := st.GetNamespace(ctx, r.NamespaceID)
	if err != nil {
		return store.Namespace{}, store.Repo{}, err
	}
	return ns, r, nil
}

// FolderPath walks a canonicalized slug path from the namespace root,
// returning the final folder. A nil slice of segments means the root
// (no folder).
func FolderPath(ctx context.Context, st *store.Store, namespaceID string, segments []string) (*store.Folder, error) {
	var parentID *int64
	var current store.Folder
	found := false
	for _, seg := range segments {
		f, err := st.GetFolderByPath(ctx, namespaceID, parentID, seg)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, ErrNotFound
			}
			return nil, err
		}
		current = f
		found = true
		id := f.ID
		parentID = &id
	}
	if !found {
		return nil, nil
	}
	return &current, nil
}

// looksLikeID reports whether a segment has the shape of an opaque
// identifier (26-character Crockford base32 ULID) rather than a
// user-chosen slug, without needing to actually parse it.
func looksLikeID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
