package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "unknown",
		"GET /health":                     "GET /health",
		"GET /api/v1/repos/{id}":          "GET /api/v1/repos/{id}",
		"POST /git/{namespace}/{repo}/git-receive-pack": "POST /git/{namespace}/{repo}/git-receive-pack",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
