package gitproto

import (
	"net/http/httptest"
	"testing"
)

func TestServiceFromQueryRejectsMissingParameter(t *testing.T) {
	r := httptest.NewRequest("GET", "/info/refs", nil)
	if _, err := ServiceFromQuery(r); err == nil {
		t.Fatalf("expected an error when service is missing")
	}
}

func TestServiceFromQueryRejectsUnknownService(t *testing.T) {
	r := httptest.NewRequest("GET", "/info/refs?service=git-weird-pack", nil)
	if _, err := ServiceFromQuery(r); err == nil {
		t.Fatalf("expected an error for an unsupported service")
	}
}

func TestServiceFromQueryAcceptsUploadPack(t *testing.T) {
	r := httptest.NewRequest("GET", "/info/refs?service=git-upload-pack", nil)
	service, err := ServiceFromQuery(r)
	if err != nil {
		t.Fatalf("ServiceFromQuery: %v", err)
	}
	if service != ServiceUploadPack {
		t.Fatalf("got %q, want %q", service, ServiceUploadPack)
	}
}
