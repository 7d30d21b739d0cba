package httpapi

import (
	"io"
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/gitproto"
	"cutman.dev/cutman/internal/obs"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/resolve"
)

// countingWriter tallies bytes written through it, feeding the
// git_pack_bytes_total metric without buffering the pack in memory.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// resolveGitRepo resolves the {namespace}/{repo} path segments by name
// (the git wire protocol has no notion of opaque ids) and checks the
// scope the requested service requires.
func (a *API) resolveGitRepo(w http.ResponseWriter, r *http.Request, service string) (string, string, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return "", "", false
	}
	ns, repo, err := resolve.Repo(r.Context(), a.store, r.PathValue("namespace"), r.PathValue("repo"))
	if err != nil {
		writeAPIError(w, r, err)
		return "", "", false
	}
	required := authn.NewScopeSet(authn.ScopeRepoRead)
	if service == gitproto.ServiceReceivePack {
		required = authn.NewScopeSet(authn.ScopeRepoWrite)
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), required) {
		return "", "", false
	}
	return ns.ID, repo.ID, true
}

func (a *API) handleGitInfoRefs(w http.ResponseWriter, r *http.Request) {
	service, err := gitproto.ServiceFromQuery(r)
	if err != nil {
		writeAPIError(w, r, badRequest(err.Error()))
		return
	}
	namespaceID, repoID, ok := a.resolveGitRepo(w, r, service)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", gitproto.ContentTypeAdvertisement(service))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	cw := &countingWriter{w: w}
	if err := gitproto.AdvertiseRefs(r.Context(), cw, a.repos.Path(namespaceID, repoID), service); err != nil {
		return
	}
	obs.ObserveGitPackBytes(service, "out", cw.n)
}

func (a *API) handleGitUploadPack(w http.ResponseWriter, r *http.Request) {
	namespaceID, repoID, ok := a.resolveGitRepo(w, r, gitproto.ServiceUploadPack)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", gitproto.ContentTypeResult(gitproto.ServiceUploadPack))
	w.WriteHeader(http.StatusOK)
	cw := &countingWriter{w: w}
	_ = gitproto.RunStatelessRPC(r.Context(), cw, r.Body, a.repos.Path(namespaceID, repoID), gitproto.ServiceUploadPack)
	obs.ObserveGitPackBytes(gitproto.ServiceUploadPack, "out", cw.n)
}

// handleGitReceivePack serializes pushes against the same repo behind the
// advisory lock repostore hands out, then refreshes the repo's on-disk
// size in the database so ListRepos reflects the push.
func (a *API) handleGitReceivePack(w http.ResponseWriter, r *http.Request) {
	namespaceID, repoID, ok := a.resolveGitRepo(w, r, gitproto.ServiceReceivePack)
	if !ok {
		return
	}
	lock := a.repos.WriterLock(repoID)
	lock.Lock()
	defer lock.Unlock()

	repoPath := a.repos.Path(namespaceID, repoID)
	w.Header().Set("Content-Type", gitproto.ContentTypeResult(gitproto.ServiceReceivePack))
	w.WriteHeader(http.StatusOK)
	cw := &countingWriter{w: w}
	err := gitproto.RunStatelessRPC(r.Context(), cw, r.Body, repoPath, gitproto.ServiceReceivePack)
	obs.ObserveGitPackBytes(gitproto.ServiceReceivePack, "in", cw.n)
	if err != nil {
		return
	}
	if size, sizeErr := a.repos.DiskUsage(namespaceID, repoID); sizeErr == nil {
		_ = a.store.TouchRepoAfterPush(r.Context(), repoID, size)
	}
	a.auditLog.LogEvent(r.Context(), "repo.push", map[string]any{"repo_id": repoID})
}
