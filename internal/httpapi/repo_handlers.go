package httpapi

import (
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/resolve"
	"cutman.dev/cutman/internal/store"
)

type repoResponse struct {
	ID          string `json:"id"`
	NamespaceID string `json:"namespace_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FolderID    *int64 `json:"folder_id,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	RowVersion  int64  `json:"row_version"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

func repoToResponse(r store.Repo) repoResponse {
	return repoResponse{
		ID:          r.ID,
		NamespaceID: r.NamespaceID,
		Name:        r.Name,
		Description: r.Description,
		FolderID:    r.FolderID,
		SizeBytes:   r.SizeBytes,
		RowVersion:  r.RowVersion,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (a *API) handleListRepos(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	namespaceID := r.URL.Query().Get("namespace_id")
	if namespaceID == "" {
		writeAPIError(w, r, badRequest("namespace_id query parameter is required"))
		return
	}
	if !a.requireScope(w, r, principal, permz.NamespaceTarget(namespaceID), authn.NewScopeSet(authn.ScopeNamespaceRead)) {
		return
	}
	pageNum, perPage, err := pagination(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	repos, total, err := a.store.ListReposByNamespace(r.Context(), namespaceID, pageNum, perPage)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	items := make([]repoResponse, len(repos))
	for i, rp := range repos {
		items[i] = repoToResponse(rp)
	}
	writeList(w, r, items, pageNum, perPage, total)
}

type createRepoRequest struct {
	NamespaceID string `json:"namespace_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FolderID    *int64 `json:"folder_id,omitempty"`
}

// handleCreateRepo creates the database row and the bare git repository on
// disk. The row is committed first; a failure to initialize the bare
// repository deletes the row again so the two never diverge.
func (a *API) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createRepoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if req.NamespaceID == "" || req.Name == "" {
		writeAPIError(w, r, badRequest("namespace_id and name are required"))
		return
	}
	if !a.requireScope(w, r, principal, permz.NamespaceTarget(req.NamespaceID), authn.NewScopeSet(authn.ScopeNamespaceWrite)) {
		return
	}
	slug, err := resolve.CanonicalizeSlug(req.Name)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	repo, err := a.store.CreateRepo(r.Context(), req.NamespaceID, slug, req.Description, req.FolderID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := a.repos.Create(r.Context(), req.NamespaceID, repo.ID); err != nil {
		_ = a.store.DeleteRepoRow(r.Context(), repo.ID)
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "repo.create", map[string]any{"repo_id": repo.ID, "namespace_id": req.NamespaceID})
	writeData(w, r, http.StatusCreated, repoToResponse(repo))
}

func (a *API) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoRead)) {
		return
	}
	writeData(w, r, http.StatusOK, repoToResponse(repo))
}

type updateRepoRequest struct {
	Description   *string `json:"description,omitempty"`
	FolderID      *int64  `json:"folder_id,omitempty"`
	ClearFolder   bool    `json:"clear_folder,omitempty"`
	ExpectVersion *int64  `json:"expect_version,omitempty"`
}

func (a *API) handleUpdateRepo(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoWrite)) {
		return
	}
	var req updateRepoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	folderSet := req.FolderID != nil || req.ClearFolder
	updated, err := a.store.UpdateRepoMeta(r.Context(), repo.ID, req.Description, req.FolderID, folderSet, req.ExpectVersion)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "repo.update", map[string]any{"repo_id": repo.ID})
	writeData(w, r, http.StatusOK, repoToResponse(updated))
}

// handleDeleteRepo requires repo:admin-or-owner and, holding the repo's
// writer lock, removes the database row, then moves the bare repository to
// trash rather than deleting it outright.
func (a *API) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	decision, err := a.perm.RequireRepoAdmin(r.Context(), principal, ns.ID, repo.ID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !decision.Allowed {
		writeAPIError(w, r, forbidden("insufficient permissions"))
		return
	}
	lock := a.repos.WriterLock(repo.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := a.store.DeleteRepoRow(r.Context(), repo.ID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := a.repos.Delete(ns.ID, repo.ID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "repo.delete", map[string]any{"repo_id": repo.ID, "namespace_id": ns.ID})
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

type setFolderRequest struct {
	FolderID *int64 `json:"folder_id"`
}

func (a *API) handleSetRepoFolder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoWrite)) {
		return
	}
	var req setFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	updated, err := a.store.UpdateRepoMeta(r.Context(), repo.ID, nil, req.FolderID, true, nil)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, repoToResponse(updated))
}

func (a *API) handleUpsertRepoGrant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	decision, err := a.perm.RequireRepoAdmin(r.Context(), principal, ns.ID, repo.ID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !decision.Allowed {
		writeAPIError(w, r, forbidden("insufficient permissions"))
		return
	}
	var req struct {
		UserID string   `json:"user_id"`
		Scopes []string `json:"scopes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	scopes, err := authn.ParseScopeSet(req.Scopes)
	if err != nil {
		writeAPIError(w, r, badRequest(err.Error()))
		return
	}
	grant, err := a.store.UpsertRepoGrant(r.Context(), req.UserID, repo.ID, uint32(scopes))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "repo_grant.create", map[string]any{"repo_id": repo.ID, "user_id": req.UserID, "scopes": req.Scopes})
	writeData(w, r, http.StatusCreated, grantToResponse(grant))
}

func (a *API) handleDeleteRepoGrant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	decision, err := a.perm.RequireRepoAdmin(r.Context(), principal, ns.ID, repo.ID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !decision.Allowed {
		writeAPIError(w, r, forbidden("insufficient permissions"))
		return
	}
	userID := r.PathValue("user_id")
	if err := a.store.DeleteRepoGrant(r.Context(), userID, repo.ID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	a.auditLog.LogEvent(r.Context(), "repo_grant.delete", map[string]any{"repo_id": repo.ID, "user_id": userID})
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) handleListRepoGrants(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoAdmin)) {
		return
	}
	grants, err := a.store.ListRepoGrants(r.Context(), repo.ID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	items := make([]grantResponse, len(grants))
	for i, g := range grants {
		items[i] = grantToResponse(g)
	}
	writeData(w, r, http.StatusOK, items)
}

func (a *API) handleAttachRepoTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoWrite)) {
		return
	}
	var req struct {
		TagID string `json:"tag_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := a.store.AttachTag(r.Context(), repo.ID, req.TagID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, map[string]any{"attached": true})
}

func (a *API) handleDetachRepoTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoWrite)) {
		return
	}
	if err := a.store.DetachTag(r.Context(), repo.ID, r.PathValue("tag_id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"detached": true})
}

func (a *API) handleListRepoTags(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoRead)) {
		return
	}
	tags, err := a.store.ListRepoTags(r.Context(), repo.ID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, tags)
}
