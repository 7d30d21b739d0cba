package httpapi

import (
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/permz"
)

func (a *API) handleListTags(w http.ResponseWriter, r *http.Request) {
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
	tags, err := a.store.ListTags(r.Context(), namespaceID)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, tags)
}

type createTagRequest struct {
	NamespaceID string `json:"namespace_id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
}

func (a *API) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req createTagRequest
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
	tag, err := a.store.CreateTag(r.Context(), req.NamespaceID, req.Name, req.Color)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, tag)
}

func (a *API) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	tag, err := a.store.GetTag(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.NamespaceTarget(tag.NamespaceID), authn.NewScopeSet(authn.ScopeNamespaceWrite)) {
		return
	}
	if err := a.store.DeleteTag(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]any{"deleted": true})
}
