package httpapi

import (
	"io"
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/lfs"
	"cutman.dev/cutman/internal/obs"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/resolve"
)

// lfsHref builds the basic-transfer-adapter URL an LFS client PUTs/GETs an
// object through, routed back to this same process.
func lfsHref(namespace, repo, oid string) string {
	return "/git-lfs/" + namespace + "/" + repo + "/objects/" + oid
}

func (a *API) handleLFSBatch(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.Repo(r.Context(), a.store, r.PathValue("namespace"), r.PathValue("repo"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}

	var req lfs.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, err)
		return
	}

	required := authn.NewScopeSet(authn.ScopeRepoRead)
	if req.Operation == "upload" {
		required = authn.NewScopeSet(authn.ScopeRepoWrite)
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), required) {
		return
	}

	resp := lfs.BatchResponse{
		Transfer: "basic",
		Objects:  make([]lfs.ObjectAction, 0, len(req.Objects)),
	}
	for _, obj := range req.Objects {
		action := lfs.ObjectAction{OID: obj.OID, Size: obj.Size}
		switch req.Operation {
		case "download":
			if !a.lfsStore.Exists(ns.ID, obj.OID) {
				action.Error = &lfs.ObjectError{Code: http.StatusNotFound, Message: "object not found"}
				break
			}
			action.Actions = map[string]lfs.Action{
				"download": {Href: lfsHref(ns.Name, repo.Name, obj.OID)},
			}
		case "upload":
			if !a.lfsStore.Exists(ns.ID, obj.OID) {
				action.Actions = map[string]lfs.Action{
					"upload": {Href: lfsHref(ns.Name, repo.Name, obj.OID)},
				}
			}
		default:
			action.Error = &lfs.ObjectError{Code: http.StatusBadRequest, Message: "unsupported operation"}
		}
		resp.Objects = append(resp.Objects, action)
	}

	w.Header().Set("Content-Type", "application/vnd.git-lfs+json")
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLFSDownload(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.Repo(r.Context(), a.store, r.PathValue("namespace"), r.PathValue("repo"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoRead)) {
		return
	}
	oid := r.PathValue("oid")
	f, err := a.lfsStore.Get(ns.ID, oid)
	if err != nil {
		writeAPIError(w, r, notFound("object not found"))
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	n, _ := io.Copy(w, f)
	obs.ObserveLFSBytes("out", n)
}

func (a *API) handleLFSUpload(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ns, repo, err := resolve.Repo(r.Context(), a.store, r.PathValue("namespace"), r.PathValue("repo"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if !a.requireScope(w, r, principal, permz.RepoTarget(ns.ID, repo.ID), authn.NewScopeSet(authn.ScopeRepoWrite)) {
		return
	}
	oid := r.PathValue("oid")
	if r.ContentLength <= 0 {
		writeAPIError(w, r, badRequest("Content-Length is required"))
		return
	}
	if r.ContentLength > a.cfg.MaxLFSObjectBytes {
		writeAPIError(w, r, payloadTooLarge("object exceeds the maximum LFS object size"))
		return
	}
	body := http.MaxBytesReader(w, r.Body, a.cfg.MaxLFSObjectBytes)
	if err := a.lfsStore.Put(ns.ID, oid, r.ContentLength, body); err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := a.store.RecordLFSObject(r.Context(), repo.ID, oid, r.ContentLength); err != nil {
		writeAPIError(w, r, err)
		return
	}
	obs.ObserveLFSBytes("in", r.ContentLength)
	writeData(w, r, http.StatusOK, map[string]any{"oid": oid, "size": r.ContentLength})
}
