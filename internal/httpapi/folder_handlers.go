package httpapi

import (
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/resolve"
	"cutman.dev/cutman/internal/store"
)

type folderResponse struct {
	ID          int64  `json:"id"`
	NamespaceID string `json:"namespace_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	CreatedAt   int64  `json:"created_at"`
}

func folderToResponse(f store.Folder) folderResponse {
	return folderResponse{
		ID:          f.ID,
		NamespaceID: f.NamespaceID,
		ParentID:    f.ParentID,
		Name:        f.Name,
		CreatedAt:   f.CreatedAt,
	}
}

func (a *API) handleListFolders(w http.ResponseWriter, r *http.Request) {
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
	folders, err := a.store.ListFolders(r.Context(), namespaceID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	items := make([]folderResponse, len(folders))
	for i, f := range folders {
		items[i] = folderToResponse(f)
	}
	writeData(w, r, http.StatusOK, items)
}

type createFolderRequest struct {
	NamespaceID string `json:"namespace_id"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
}

func (a *API) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if req.NamespaceID == "" {
		writeAPIError(w, r, badRequest("namespace_id is required"))
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
	folder, err := a.store.CreateFolder(r.Context(), req.NamespaceID, req.ParentID, slug)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, folderToResponse(folder))
}

type moveFolderRequest struct {
	NewParentID *int64 `json:"new_parent_id"`
}

func (a *API) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := parseInt64Param(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, badRequest("id must be an integer"))
		return
	}
	folder, err := a.store.GetFolder(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.NamespaceTarget(folder.NamespaceID), authn.NewScopeSet(authn.ScopeNamespaceWrite)) {
		return
	}
	var req moveFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := a.store.MoveFolder(r.Context(), id, req.NewParentID); err != nil {
		writeAPIError(w, r, err)
		return
	}
	updated, err := a.store.GetFolder(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, folderToResponse(updated))
}

func (a *API) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := parseInt64Param(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, badRequest("id must be an integer"))
		return
	}
	folder, err := a.store.GetFolder(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.NamespaceTarget(folder.NamespaceID), authn.NewScopeSet(authn.ScopeNamespaceWrite)) {
		return
	}
	if err := a.store.DeleteFolder(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}
