package gitproto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
)

// Service names recognized by the smart-HTTP protocol.
const (
	ServiceUploadPack  = "git-upload-pack"
	ServiceReceivePack = "git-receive-pack"
)

// ValidService reports whether name is one of the two stateless-RPC
// services cutman proxies.
func ValidService(name string) bool {
	return name == ServiceUploadPack || name == ServiceReceivePack
}

// ContentTypeAdvertisement returns the content-type for an info/refs
// response advertising service.
func ContentTypeAdvertisement(service string) string {
	return fmt.Sprintf("application/x-%s-advertisement", service)
}

// ContentTypeResult returns the content-type for a stateless-RPC result
// stream of service.
func ContentTypeResult(service string) string {
	return fmt.Sprintf("application/x-%s-result", service)
}

// AdvertiseRefs runs `git <service> --stateless-rpc --advertise-refs` in
// repoPath and writes the pkt-line service banner followed by the
// subprocess's own advertisement output.
func AdvertiseRefs(ctx context.Context, w io.Writer, repoPath, service string) error {
	if !ValidService(service) {
		return fmt.Errorf("gitproto: unknown service %q", service)
	}
	if err := WriteServiceBanner(w, service); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, binaryFor(service), "--stateless-rpc", "--advertise-refs", repoPath)
	cmd.Stdout = w
	return cmd.Run()
}

// RunStatelessRPC streams body into `git <service> --stateless-rpc
// <repoPath>`'s stdin and copies its stdout to w without buffering the
// whole response. The subprocess is tied to ctx: a client disconnect
// (ctx.Done()) kills it, discarding any partially received pack so no
// refs are advanced.
func RunStatelessRPC(ctx context.Context, w io.Writer, body io.Reader, repoPath, service string) error {
	if !ValidService(service) {
		return fmt.Errorf("gitproto: unknown service %q", service)
	}
	cmd := exec.CommandContext(ctx, binaryFor(service), "--stateless-rpc", repoPath)
	cmd.Stdin = body
	cmd.Stdout = w

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("gitproto: %s: %w", service, err)
	}
	return nil
}

func binaryFor(service string) string {
	switch service {
	case ServiceUploadPack:
		return "git-upload-pack"
	case ServiceReceivePack:
		return "git-receive-pack"
	default:
		return service
	}
}

// ServiceFromQuery extracts and validates the `service` query parameter of
// an info/refs request.
func ServiceFromQuery(r *http.Request) (string, error) {
	service := r.URL.Query().Get("service")
	if service == "" {
		return "", fmt.Errorf("gitproto: missing service parameter")
	}
	if !ValidService(service) {
		return "", fmt.Errorf("gitproto: unsupported service %q", service)
	}
	return service, nil
}
