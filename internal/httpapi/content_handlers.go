package httpapi

import (
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/content"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/resolve"
	"cutman.dev/cutman/internal/store"
)

// repoForContent resolves {id}, checks repo:read, and hands back a content
// browser rooted at the repo's bare repository directory on disk.
func (a *API) repoForContent(w http.ResponseWriter, r *http.Request) (*content.Browser, store.Repo, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return nil, store.Repo{}, false
	}
	ns, repo, err := resolve.RepoByID(r.Context(), a.store, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return nil, store.Repo{}, false
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoRead)) {
		return nil, store.Repo{}, false
	}
	return content.New(a.repos.Path(ns.ID, repo.ID)), repo, true
}

func (a *API) handleListRefs(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	refs, err := browser.ListRefs(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, refs)
}

func (a *API) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	c, err := browser.GetCommit(r.Context(), r.PathValue("rev"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, c)
}

func (a *API) handleListTree(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	entries, err := browser.ListTree(r.Context(), r.PathValue("rev"), r.PathValue("path"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, entries)
}

func (a *API) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	rev := r.PathValue("rev")
	path := r.PathValue("path")
	sha, err := browser.ResolveRevision(r.Context(), rev+":"+path)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if binary, err := browser.IsBinary(r.Context(), sha); err == nil && binary {
		w.Header().Set("Content-Type", "application/octet-stream")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_ = browser.GetBlob(r.Context(), sha, w)
}

func (a *API) handleBlame(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	lines, err := browser.Blame(r.Context(), r.PathValue("rev"), r.PathValue("path"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, lines)
}

func (a *API) handleDiff(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeAPIError(w, r, badRequest("from and to query parameters are required"))
		return
	}
	diff, err := browser.Diff(r.Context(), from, to)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(diff))
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	browser, repo, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "tar"
	}
	if format != "tar" && format != "zip" {
		writeAPIError(w, r, badRequest("format must be tar or zip"))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+repo.Name+"."+format+`"`)
	w.WriteHeader(http.StatusOK)
	_ = browser.Archive(r.Context(), r.PathValue("rev"), format, w)
}

func (a *API) handleReadme(w http.ResponseWriter, r *http.Request) {
	browser, _, ok := a.repoForContent(w, r)
	if !ok {
		return
	}
	entry, err := browser.Readme(r.Context(), r.PathValue("rev"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if entry == nil {
		writeAPIError(w, r, notFound("no readme found"))
		return
	}
	writeData(w, r, http.StatusOK, entry)
}
