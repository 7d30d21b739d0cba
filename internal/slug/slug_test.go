package slug

import "testing"

func TestCanonicalizeLowercasesAndNormalizes(t *testing.T) {
	got, err := Canonicalize("My-Repo")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != "my-repo" {
		t.Fatalf("expected my-repo, got %q", got)
	}
}

func TestCanonicalizeRejectsEmptyDotAndDotDot(t *testing.T) {
	for _, in := range []string{"", ".", ".."} {
		if _, err := Canonicalize(in); err != ErrInvalid {
			t.Fatalf("Canonicalize(%q): expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestCanonicalizeRejectsTraversalAndSlashes(t *testing.T) {
	for _, in := range []string{"../escape", "a/b", "../../etc"} {
		if _, err := Canonicalize(in); err != ErrInvalid {
			t.Fatalf("Canonicalize(%q): expected ErrInvalid, got %v", in, err)
		}
	}
}

func TestCanonicalizeFoldsUppercaseBeforeGrammarCheck(t *testing.T) {
	// Uppercase is folded rather than rejected: grammar checks run on the
	// already-lowered form.
	got, err := Canonicalize("UPPER")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if got != "upper" {
		t.Fatalf("expected upper, got %q", got)
	}
}

func TestCanonicalizeRejectsOverlongSegment(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Canonicalize(string(long)); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for a 64-byte segment, got %v", err)
	}
}

func TestCanonicalizeRejectsNullByte(t *testing.T) {
	if _, err := Canonicalize("abc\x00def"); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for an embedded nullbyte, got %v", err)
	}
}
