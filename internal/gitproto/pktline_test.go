package gitproto

import (
	"bytes"
	"strings"
	"testing"
)

func TestWritePacketPrefixesLength(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, []byte("hello\n")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	// 6 payload bytes + 4 length-prefix bytes = 10 = 0x000a.
	if got, want := buf.String(), "000ahello\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWritePacketRejectsOverlongPayload(t *testing.T) {
	var buf bytes.Buffer
	huge := bytes.Repeat([]byte("a"), 0xFFFF)
	if err := WritePacket(&buf, huge); err == nil {
		t.Fatalf("expected an error for an oversized packet")
	}
}

func TestWriteFlushWritesZeroes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFlush(&buf); err != nil {
		t.Fatalf("WriteFlush: %v", err)
	}
	if buf.String() != "0000" {
		t.Fatalf("got %q, want %q", buf.String(), "0000")
	}
}

func TestWriteServiceBannerIncludesServiceNameAndFlush(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteServiceBanner(&buf, ServiceUploadPack); err != nil {
		t.Fatalf("WriteServiceBanner: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "# service=git-upload-pack\n") {
		t.Fatalf("banner missing service line: %q", out)
	}
	if !strings.HasSuffix(out, flushPkt) {
		t.Fatalf("banner missing trailing flush: %q", out)
	}
}

func TestValidService(t *testing.T) {
	cases := map[string]bool{
		ServiceUploadPack:  true,
		ServiceReceivePack: true,
		"git-weird-pack":   false,
		"":                 false,
	}
	for name, want := range cases {
		if got := ValidService(name); got != want {
			t.Fatalf("ValidService(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestContentTypeAdvertisementAndResult(t *testing.T) {
	if got, want := ContentTypeAdvertisement(ServiceUploadPack), "application/x-git-upload-pack-advertisement"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := ContentTypeResult(ServiceReceivePack), "application/x-git-receive-pack-result"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
