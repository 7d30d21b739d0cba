package httpapi

import (
	"net/http"
	"strconv"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/permz"
)

// requireScope resolves the permission decision for principal against
// target and writes a Forbidden envelope on denial. Returns false when the
// caller should stop handling the request.
func (a *API) requireScope(w http.ResponseWriter, r *http.Request, principal authn.Principal, target permz.Target, required authn.ScopeSet) bool {
	decision, err := a.perm.Evaluate(r.Context(), principal, target, required)
	if err != nil {
		writeAPIError(w, r, err)
		return false
	}
	if !decision.Allowed {
		writeAPIError(w, r, forbidden("insufficient permissions"))
		return false
	}
	return true
}

func parseInt64Param(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// folderIDParam parses an optional folder_id query parameter, returning
// nil when absent (meaning "namespace root").
func folderIDParam(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("folder_id")
	if raw == "" {
		return nil, nil
	}
	id, err := parseInt64Param(raw)
	if err != nil {
		return nil, badRequest("folder_id must be an integer")
	}
	return &id, nil
}
