package lfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestPutThenGetRoundTrips(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := []byte("hello lfs object")
	oid := sha256Hex(data)

	if err := st.Put("ns-1", oid, int64(len(data)), bytes.NewReader(data)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !st.Exists("ns-1", oid) {
		t.Fatalf("expected object to exist after Put")
	}

	f, err := st.Get("ns-1", oid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		t.Fatalf("read object: %v", err)
	}
	if buf.String() != string(data) {
		t.Fatalf("got %q, want %q", buf.String(), string(data))
	}

	size, err := st.Size("ns-1", oid)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != int64(len(data)) {
		t.Fatalf("got size %d, want %d", size, len(data))
	}
}

func TestPutRejectsOIDMismatch(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := []byte("some bytes")
	wrongOID := sha256Hex([]byte("different bytes"))

	err = st.Put("ns-1", wrongOID, int64(len(data)), bytes.NewReader(data))
	if err != ErrMismatch {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if st.Exists("ns-1", wrongOID) {
		t.Fatalf("a mismatched upload must not be left on disk")
	}
}

func TestPutRejectsSizeMismatch(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := []byte("some bytes")
	oid := sha256Hex(data)

	err = st.Put("ns-1", oid, int64(len(data)+1), bytes.NewReader(data))
	if err != ErrMismatch {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestExistsFalseForUnknownObject(t *testing.T) {
	st, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if st.Exists("ns-1", "deadbeef") {
		t.Fatalf("expected Exists to be false for an object never written")
	}
}
