package httpapi

import (
	"net/http"
	"strings"

	"cutman.dev/cutman/internal/authn"
)

// anonymousRoutes don't require a resolved principal; the handler itself
// decides what an anonymous caller may see (today: /health and
// /openapi.yaml).
var anonymousRoutes = map[string]bool{
	"/health":       true,
	"/openapi.yaml": true,
}

// withAuth resolves whichever credential form the caller presented —
// bearer for the REST surface, HTTP Basic (git sends a token secret as
// the username or password, per the git credential-helper contract) for
// the git and LFS mounts — into an authn.Principal attached to the
// request context.
// A request with no credential proceeds as the anonymous principal;
// individual handlers call permz.Engine.Evaluate, which denies anonymous
// access to anything but the allow-listed routes above.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if anonymousRoutes[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		secret, present := extractCredential(r)
		if !present {
			if isGitMount(r.URL.Path) {
				w.Header().Set("WWW-Authenticate", `Basic realm="cutman"`)
				writeAPIError(w, r, newAPIError(KindUnauthenticated, "credentials required"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.authnSvc.Authenticate(r.Context(), secret)
		if err != nil {
			if isGitMount(r.URL.Path) {
				w.Header().Set("WWW-Authenticate", `Basic realm="cutman"`)
			}
			writeAPIError(w, r, err)
			return
		}

		ctx := authn.ContextWithPrincipal(r.Context(), principal)
		ctx = authn.ContextWithToken(ctx, secret)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractCredential pulls the ct_-prefixed secret out of either an
// "Authorization: Bearer <secret>" header (REST clients) or HTTP Basic
// credentials (git clients using a credential helper, where the password
// field carries the secret regardless of username).
func extractCredential(r *http.Request) (string, bool) {
	if user, pass, ok := r.BasicAuth(); ok {
		if strings.HasPrefix(pass, authn.TokenPrefix) {
			return pass, true
		}
		if strings.HasPrefix(user, authn.TokenPrefix) {
			return user, true
		}
		return pass, pass != ""
	}

	auth := r.Header.Get("Authorization")
	if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(bearer), true
	}
	return "", false
}

func isGitMount(path string) bool {
	return strings.HasPrefix(path, "/git/") || strings.HasPrefix(path, "/git-lfs/")
}

// requirePrincipal extracts the authn.Principal attached by withAuth,
// rejecting anonymous callers. Every handler except /health, /metrics and
// /openapi.yaml calls this first.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (authn.Principal, bool) {
	p, ok := authn.PrincipalFromContext(r.Context())
	if !ok || p.IsAnonymous() {
		writeAPIError(w, r, newAPIError(KindUnauthenticated, "authentication required"))
		return authn.Principal{}, false
	}
	return p, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (authn.Principal, bool) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return authn.Principal{}, false
	}
	if !p.IsAdmin {
		writeAPIError(w, r, forbidden("admin privileges required"))
		return authn.Principal{}, false
	}
	return p, true
}
