package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cutman.dev/cutman/internal/audit"
	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/config"
	"cutman.dev/cutman/internal/lfs"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/repostore"
	"cutman.dev/cutman/internal/store"
)

// apiClient drives a *testing.T-scoped httptest.Server the way the teacher's
// own handlers_test.go drives its in-process API, against a real store
// backed by a temp-dir SQLite file rather than an in-memory ledger.
type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	api     *API
	st      *store.Store
}

func newTestAPI(t *testing.T) *apiClient {
	return newTestAPIWith(t, func(*config.Config) {})
}

// newTestAPIWith builds the same fixture as newTestAPI but lets the caller
// tweak the resolved Config before the API is wired up, for cases (like
// SelfServiceTokens) that need a non-default setting.
func newTestAPIWith(t *testing.T, mutate func(*config.Config)) *apiClient {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.RateLimitBurst = 1000
	cfg.RateLimitRPS = 1000
	mutate(&cfg)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	repos, err := repostore.New(cfg.ReposDir(), cfg.TrashDir())
	if err != nil {
		t.Fatalf("repostore.New: %v", err)
	}
	lfsStore, err := lfs.New(cfg.LFSDir())
	if err != nil {
		t.Fatalf("lfs.New: %v", err)
	}

	authnSvc := authn.NewService(st)
	perm := permz.New(st)
	auditLog := audit.NewLogger(st)

	api := New(st, authnSvc, perm, repos, lfsStore, auditLog, cfg, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t, api: api, st: st}
}

// bootstrapAdmin issues an admin-root token directly against the store,
// bypassing HTTP the way a fresh server's first-run bootstrap would.
func (c *apiClient) bootstrapAdmin() string {
	c.t.Helper()
	secret, _, err := c.api.authnSvc.IssueToken(context.Background(), nil, "test admin")
	if err != nil {
		c.t.Fatalf("IssueToken: %v", err)
	}
	return secret
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func bearer(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

func decodeInto[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHandleCreateUserCanonicalizesUsername(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	resp := api.post("/api/v1/admin/users", map[string]any{"username": "Alice-Example"}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decodeInto[map[string]any](t, resp)
	data := body["data"].(map[string]any)
	if data["username"] != "alice-example" {
		t.Fatalf("expected canonicalized username, got %v", data["username"])
	}
}

func TestHandleCreateUserRejectsUnusableUsername(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	resp := api.post("/api/v1/admin/users", map[string]any{"username": "../../etc"}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleCreateUserRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/api/v1/admin/users", map[string]any{"username": "bob"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandleCreateNamespaceCanonicalizesName(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	resp := api.post("/api/v1/admin/namespaces", map[string]any{"name": "Widgets-Team"}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body := decodeInto[map[string]any](t, resp)
	data := body["data"].(map[string]any)
	if data["name"] != "widgets-team" {
		t.Fatalf("expected canonicalized name, got %v", data["name"])
	}
}

func TestHandleCreateNamespaceRejectsInvalidSlug(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	resp := api.post("/api/v1/admin/namespaces", map[string]any{"name": ""}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleCreateRepoCanonicalizesName(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	nsResp := api.post("/api/v1/admin/namespaces", map[string]any{"name": "acme"}, bearer(admin))
	ns := decodeInto[map[string]any](t, nsResp)["data"].(map[string]any)
	nsID := ns["id"].(string)

	resp := api.post("/api/v1/repos", map[string]any{
		"namespace_id": nsID,
		"name":         "My-Cool-Repo",
	}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d, body: %s", resp.StatusCode, mustDump(t, resp))
	}
	data := decodeInto[map[string]any](t, resp)["data"].(map[string]any)
	if data["name"] != "my-cool-repo" {
		t.Fatalf("expected canonicalized name, got %v", data["name"])
	}
}

func TestHandleCreateRepoRejectsBadSlug(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	nsResp := api.post("/api/v1/admin/namespaces", map[string]any{"name": "acme2"}, bearer(admin))
	ns := decodeInto[map[string]any](t, nsResp)["data"].(map[string]any)
	nsID := ns["id"].(string)

	resp := api.post("/api/v1/repos", map[string]any{
		"namespace_id": nsID,
		"name":         "../escape",
	}, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthEndpointIsAnonymous(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/health", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandleCreateTokenRejectsSelfServiceWhenDisabled(t *testing.T) {
	api := newTestAPI(t) // SelfServiceTokens defaults to false
	admin := api.bootstrapAdmin()

	userResp := api.post("/api/v1/admin/users", map[string]any{"username": "carol"}, bearer(admin))
	user := decodeInto[map[string]any](t, userResp)["data"].(map[string]any)
	userID := user["id"].(string)

	firstTok := decodeInto[map[string]any](t,
		api.post("/api/v1/admin/users/"+userID+"/tokens", map[string]any{"description": "bootstrap"}, bearer(admin)),
	)["data"].(map[string]any)
	userSecret := firstTok["secret"].(string)

	resp := api.post("/api/v1/admin/users/"+userID+"/tokens", map[string]any{"description": "self-issued"}, bearer(userSecret))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with self-service disabled, got %d", resp.StatusCode)
	}
}

func TestHandleCreateTokenAllowsSelfServiceForOwnAccount(t *testing.T) {
	api := newTestAPIWith(t, func(cfg *config.Config) { cfg.SelfServiceTokens = true })
	admin := api.bootstrapAdmin()

	userResp := api.post("/api/v1/admin/users", map[string]any{"username": "dave"}, bearer(admin))
	user := decodeInto[map[string]any](t, userResp)["data"].(map[string]any)
	userID := user["id"].(string)

	firstTok := decodeInto[map[string]any](t,
		api.post("/api/v1/admin/users/"+userID+"/tokens", map[string]any{"description": "bootstrap"}, bearer(admin)),
	)["data"].(map[string]any)
	userSecret := firstTok["secret"].(string)

	resp := api.post("/api/v1/admin/users/"+userID+"/tokens", map[string]any{"description": "self-issued"}, bearer(userSecret))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with self-service enabled, got %d, body: %s", resp.StatusCode, mustDump(t, resp))
	}
}

func TestHandleCreateTokenSelfServiceRejectsOtherAccount(t *testing.T) {
	api := newTestAPIWith(t, func(cfg *config.Config) { cfg.SelfServiceTokens = true })
	admin := api.bootstrapAdmin()

	userResp := api.post("/api/v1/admin/users", map[string]any{"username": "erin"}, bearer(admin))
	user := decodeInto[map[string]any](t, userResp)["data"].(map[string]any)
	userID := user["id"].(string)
	otherResp := api.post("/api/v1/admin/users", map[string]any{"username": "frank"}, bearer(admin))
	other := decodeInto[map[string]any](t, otherResp)["data"].(map[string]any)
	otherID := other["id"].(string)

	firstTok := decodeInto[map[string]any](t,
		api.post("/api/v1/admin/users/"+userID+"/tokens", map[string]any{"description": "bootstrap"}, bearer(admin)),
	)["data"].(map[string]any)
	userSecret := firstTok["secret"].(string)

	resp := api.post("/api/v1/admin/users/"+otherID+"/tokens", map[string]any{"description": "self-issued"}, bearer(userSecret))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 minting a token for someone else's account, got %d", resp.StatusCode)
	}
}

func TestDecodeJSONRejectsOversizedBodyAsPayloadTooLarge(t *testing.T) {
	api := newTestAPI(t)
	admin := api.bootstrapAdmin()

	huge := map[string]any{"name": strings.Repeat("a", 2<<20)} // well over decodeJSON's 1MiB cap
	resp := api.post("/api/v1/admin/namespaces", huge, bearer(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d, body: %s", resp.StatusCode, mustDump(t, resp))
	}
	body := decodeInto[map[string]any](t, resp)
	errBody := body["error"].(map[string]any)
	if errBody["kind"] != "PayloadTooLarge" {
		t.Fatalf("expected PayloadTooLarge kind, got %v", errBody["kind"])
	}
}

func mustDump(t *testing.T, r *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r.Body)
	return buf.String()
}
