// Package httpapi is cutman's REST dispatcher and Git/LFS mount point:
// one http.Handler composing the control-plane and data-plane surfaces
// behind a shared middleware stack.
package httpapi

import (
	"net/http"

	cutman "cutman.dev/cutman"
	"cutman.dev/cutman/internal/audit"
	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/config"
	"cutman.dev/cutman/internal/lfs"
	"cutman.dev/cutman/internal/obs"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/repostore"
	"cutman.dev/cutman/internal/store"
)

// API is the HTTP layer: a mux plus the services handlers need to resolve,
// authorize, and mutate cutman's domain state.
type API struct {
	mux *http.ServeMux

	store    *store.Store
	authnSvc *authn.Service
	perm     *permz.Engine
	repos    *repostore.Store
	lfsStore *lfs.Storage
	auditLog *audit.Logger
	cfg      config.Config

	version string
}

// New builds an API wired to the given services. Call Handler to obtain
// the composed http.Handler ready to pass to an http.Server.
func New(st *store.Store, authnSvc *authn.Service, perm *permz.Engine, repos *repostore.Store, lfsStore *lfs.Storage, auditLog *audit.Logger, cfg config.Config, version string) *API {
	a := &API{
		mux:      http.NewServeMux(),
		store:    st,
		authnSvc: authnSvc,
		perm:     perm,
		repos:    repos,
		lfsStore: lfsStore,
		auditLog: auditLog,
		cfg:      cfg,
		version:  version,
	}
	a.routes()
	return a
}

// Handler returns the fully composed http.Handler: request-id, access
// logging, panic recovery, body-size limiting, rate limiting, then
// authentication, then the route mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument("", a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.cfg.RateLimitBurst, a.cfg.RateLimitRPS)
	h = MaxBodyBytes(h, a.cfg.MaxRequestBodyBytes)
	h = Recovery(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.Handle("GET /metrics", obs.Handler())
	a.mux.HandleFunc("GET /openapi.yaml", a.handleOpenAPISpec)

	a.mux.HandleFunc("POST /api/v1/admin/users", a.handleCreateUser)
	a.mux.HandleFunc("DELETE /api/v1/admin/users/{id}", a.handleDeleteUser)
	a.mux.HandleFunc("POST /api/v1/admin/users/{id}/tokens", a.handleCreateToken)
	a.mux.HandleFunc("DELETE /api/v1/admin/tokens/{id}", a.handleRevokeToken)
	a.mux.HandleFunc("POST /api/v1/admin/namespaces", a.handleCreateNamespace)
	a.mux.HandleFunc("DELETE /api/v1/admin/namespaces/{id}", a.handleDeleteNamespace)
	a.mux.HandleFunc("POST /api/v1/admin/users/{id}/namespace-grants", a.handleCreateNamespaceGrant)
	a.mux.HandleFunc("DELETE /api/v1/admin/users/{id}/namespace-grants/{namespace_id}", a.handleDeleteNamespaceGrant)

	a.mux.HandleFunc("GET /api/v1/repos", a.handleListRepos)
	a.mux.HandleFunc("POST /api/v1/repos", a.handleCreateRepo)
	a.mux.HandleFunc("GET /api/v1/repos/{id}", a.handleGetRepo)
	a.mux.HandleFunc("PATCH /api/v1/repos/{id}", a.handleUpdateRepo)
	a.mux.HandleFunc("DELETE /api/v1/repos/{id}", a.handleDeleteRepo)
	a.mux.HandleFunc("POST /api/v1/repos/{id}/folder", a.handleSetRepoFolder)
	a.mux.HandleFunc("POST /api/v1/repos/{id}/tags", a.handleAttachRepoTag)
	a.mux.HandleFunc("DELETE /api/v1/repos/{id}/tags/{tag_id}", a.handleDetachRepoTag)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/tags", a.handleListRepoTags)
	a.mux.HandleFunc("POST /api/v1/repos/{id}/grants", a.handleUpsertRepoGrant)
	a.mux.HandleFunc("DELETE /api/v1/repos/{id}/grants/{user_id}", a.handleDeleteRepoGrant)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/grants", a.handleListRepoGrants)

	a.mux.HandleFunc("GET /api/v1/repos/{id}/refs", a.handleListRefs)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/commits/{rev}", a.handleGetCommit)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/tree/{rev}", a.handleListTree)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/tree/{rev}/{path...}", a.handleListTree)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/blob/{rev}/{path...}", a.handleGetBlob)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/blame/{rev}/{path...}", a.handleBlame)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/diff", a.handleDiff)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/archive/{rev}", a.handleArchive)
	a.mux.HandleFunc("GET /api/v1/repos/{id}/readme/{rev}", a.handleReadme)

	a.mux.HandleFunc("GET /api/v1/folders", a.handleListFolders)
	a.mux.HandleFunc("POST /api/v1/folders", a.handleCreateFolder)
	a.mux.HandleFunc("PATCH /api/v1/folders/{id}", a.handleMoveFolder)
	a.mux.HandleFunc("DELETE /api/v1/folders/{id}", a.handleDeleteFolder)

	a.mux.HandleFunc("GET /api/v1/tags", a.handleListTags)
	a.mux.HandleFunc("POST /api/v1/tags", a.handleCreateTag)
	a.mux.HandleFunc("DELETE /api/v1/tags/{id}", a.handleDeleteTag)

	a.mux.HandleFunc("GET /git/{namespace}/{repo}/info/refs", a.handleGitInfoRefs)
	a.mux.HandleFunc("POST /git/{namespace}/{repo}/git-upload-pack", a.handleGitUploadPack)
	a.mux.HandleFunc("POST /git/{namespace}/{repo}/git-receive-pack", a.handleGitReceivePack)

	a.mux.HandleFunc("POST /git-lfs/{namespace}/{repo}/objects/batch", a.handleLFSBatch)
	a.mux.HandleFunc("GET /git-lfs/{namespace}/{repo}/objects/{oid}", a.handleLFSDownload)
	a.mux.HandleFunc("PUT /git-lfs/{namespace}/{repo}/objects/{oid}", a.handleLFSUpload)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, r, notFound("resource not found"))
	})
}

func (a *API) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(cutman.OpenAPISpec)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Reader().PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": a.version})
}
