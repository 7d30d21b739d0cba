// Package gitproto implements cutman's Git smart-HTTP adapter: the
// info/refs service advertisement and stateless-RPC streaming of
// git-upload-pack and git-receive-pack against an on-disk bare repo.
package gitproto

import (
	"fmt"
	"io"
)

// flushPkt is the pkt-line flush packet: four ASCII zeroes, no payload.
const flushPkt = "0000"

// WritePacket writes data as a single pkt-line: a 4-hex-digit length
// prefix (including itself) followed by the payload.
func WritePacket(w io.Writer, data []byte) error {
	if len(data) > 0xFFFF-4 {
		return fmt.Errorf("gitproto: packet too large: %d bytes", len(data))
	}
	length := len(data) + 4
	if _, err := fmt.Fprintf(w, "%04x", length); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// WriteFlush writes the flush-pkt terminator.
func WriteFlush(w io.Writer) error {
	_, err := io.WriteString(w, flushPkt)
	return err
}

// WriteServiceBanner writes the "# service=<name>\n" pkt-line plus a
// trailing flush-pkt, the required preamble of a smart-HTTP
// info/refs advertisement.
func WriteServiceBanner(w io.Writer, service string) error {
	if err := WritePacket(w, []byte(fmt.Sprintf("# service=%s\n", service))); err != nil {
		return err
	}
	return WriteFlush(w)
}
