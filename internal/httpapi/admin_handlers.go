package httpapi

import (
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/resolve"
	"cutman.dev/cutman/internal/store"
)

type createUserRequest struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type userResponse struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	IsAdmin            bool   `json:"is_admin"`
	PrimaryNamespaceID string `json:"primary_namespace_id"`
	CreatedAt          int64  `json:"created_at"`
}

func userToResponse(u store.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Username:           u.Username,
		IsAdmin:            u.IsAdmin,
		PrimaryNamespaceID: u.PrimaryNamespaceID,
		CreatedAt:          u.CreatedAt,
	}
}

// handleCreateUser provisions a user plus their personal namespace —
// every user owns exactly one, created alongside them.
func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if req.Username == "" {
		writeAPIError(w, r, badRequest("username is required"))
		return
	}
	user, _, err := a.store.CreateUserWithNamespace(r.Context(), req.Username, req.IsAdmin)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "user.create", map[string]any{"user_id": user.ID, "username": user.Username})
	writeData(w, r, http.StatusCreated, userToResponse(user))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.store.DeleteUser(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "user.delete", map[string]any{"user_id": id})
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

type createTokenRequest struct {
	Description string `json:"description"`
}

type tokenResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
	Secret      string `json:"secret,omitempty"`
}

// handleCreateToken issues a token for the user named by {id} in the path,
// or the admin-root token when {id} is the literal "admin". The plaintext
// secret is returned exactly once and never stored.
//
// An admin can issue a token for anyone. A non-admin can only reach this
// path at all when Config.SelfServiceTokens is enabled, and then only to
// mint a token for their own account — never for "admin" or another user.
func (a *API) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if !principal.IsAdmin {
		if !a.cfg.SelfServiceTokens {
			writeAPIError(w, r, forbidden("admin privileges required"))
			return
		}
		if id == "admin" || id != principal.UserID {
			writeAPIError(w, r, forbidden("self-service tokens may only be issued for your own account"))
			return
		}
	}

	var req createTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}

	var userID *string
	if id != "admin" {
		if _, err := a.store.GetUser(r.Context(), id); err != nil {
			writeAPIError(w, r, err)
			return
		}
		userID = &id
	}

	secret, tok, err := a.authnSvc.IssueToken(r.Context(), userID, req.Description)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "token.create", map[string]any{"token_id": tok.ID, "user_id": id})
	writeData(w, r, http.StatusCreated, tokenResponse{
		ID:          tok.ID,
		Description: tok.Description,
		CreatedAt:   tok.CreatedAt,
		Secret:      secret,
	})
}

func (a *API) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.authnSvc.RevokeToken(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "token.revoke", map[string]any{"token_id": id})
	writeData(w, r, http.StatusOK, map[string]any{"revoked": true})
}

type createNamespaceRequest struct {
	Name      string `json:"name"`
	RepoLimit *int64 `json:"repo_limit,omitempty"`
}

type namespaceResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	OwnerUserID *string `json:"owner_user_id,omitempty"`
	RepoLimit   *int64  `json:"repo_limit,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

func namespaceToResponse(ns store.Namespace) namespaceResponse {
	return namespaceResponse{
		ID:          ns.ID,
		Name:        ns.Name,
		Kind:        string(ns.Kind),
		OwnerUserID: ns.OwnerUserID,
		RepoLimit:   ns.RepoLimit,
		CreatedAt:   ns.CreatedAt,
	}
}

// handleCreateNamespace creates a shared namespace; personal namespaces
// are only created implicitly by handleCreateUser.
func (a *API) handleCreateNamespace(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req createNamespaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	slug, err := resolve.CanonicalizeSlug(req.Name)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	ns, err := a.store.CreateNamespace(r.Context(), slug, req.RepoLimit)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "namespace.create", map[string]any{"namespace_id": ns.ID})
	writeData(w, r, http.StatusCreated, namespaceToResponse(ns))
}

func (a *API) handleDeleteNamespace(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	if err := a.store.DeleteNamespace(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "namespace.delete", map[string]any{"namespace_id": id})
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

type grantRequest struct {
	Scopes []string `json:"scopes"`
}

type grantResponse struct {
	UserID    string   `json:"user_id"`
	TargetID  string   `json:"target_id"`
	Scopes    []string `json:"scopes"`
	GrantedAt int64    `json:"granted_at"`
}

func grantToResponse(g store.Grant) grantResponse {
	return grantResponse{
		UserID:    g.UserID,
		TargetID:  g.TargetID,
		Scopes:    authn.SortedStrings(authn.ScopeSet(g.AllowBits)),
		GrantedAt: g.GrantedAt,
	}
}

func (a *API) handleCreateNamespaceGrant(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	userID := r.PathValue("id")
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	scopes, err := authn.ParseScopeSet(req.Scopes)
	if err != nil {
		writeAPIError(w, r, badRequest(err.Error()))
		return
	}
	namespaceID := r.URL.Query().Get("namespace_id")
	if namespaceID == "" {
		writeAPIError(w, r, badRequest("namespace_id query parameter is required"))
		return
	}
	grant, err := a.store.UpsertNamespaceGrant(r.Context(), userID, namespaceID, uint32(scopes))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "namespace_grant.create", map[string]any{"user_id": userID, "namespace_id": namespaceID, "scopes": req.Scopes})
	writeData(w, r, http.StatusCreated, grantToResponse(grant))
}

func (a *API) handleDeleteNamespaceGrant(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	userID := r.PathValue("id")
	namespaceID := r.PathValue("namespace_id")
	if err := a.store.DeleteNamespaceGrant(r.Context(), userID, namespaceID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "namespace_grant.delete", map[string]any{"user_id": userID, "namespace_id": namespaceID})
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}
