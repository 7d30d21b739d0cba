package httpapi

import (
	"errors"
	"net/http"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/content"
	"cutman.dev/cutman/internal/lfs"
	"cutman.dev/cutman/internal/resolve"
	"cutman.dev/cutman/internal/store"
)

// Kind is one member of a closed error-kind alphabet, serialized as
// error.kind in every failure envelope.
type Kind string

const (
	KindBadRequest         Kind = "BadRequest"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindUnprocessable      Kind = "UnprocessableEntity"
	KindPayloadTooLarge    Kind = "PayloadTooLarge"
	KindInternal           Kind = "Internal"
	KindAmbiguousRevision  Kind = "AmbiguousRevision"
)

// statusFor is the one-to-one kind→HTTP status mapping.
func statusFor(k Kind) int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindAmbiguousRevision:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// apiError carries a Kind plus the client-facing message and optional
// structured details, satisfying error so handlers can return it directly.
type apiError struct {
	kind    Kind
	message string
	details map[string]any
}

func (e *apiError) Error() string { return e.message }

// newAPIError builds an apiError of kind with message.
func newAPIError(kind Kind, message string) *apiError {
	return &apiError{kind: kind, message: message}
}

// withDetails attaches structured detail fields to an apiError.
func (e *apiError) withDetails(details map[string]any) *apiError {
	e.details = details
	return e
}

func badRequest(msg string) *apiError     { return newAPIError(KindBadRequest, msg) }
func forbidden(msg string) *apiError      { return newAPIError(KindForbidden, msg) }
func notFound(msg string) *apiError       { return newAPIError(KindNotFound, msg) }
func conflict(msg string) *apiError       { return newAPIError(KindConflict, msg) }
func unprocessable(msg string) *apiError  { return newAPIError(KindUnprocessable, msg) }
func payloadTooLarge(msg string) *apiError { return newAPIError(KindPayloadTooLarge, msg) }

// translateError maps a lower-layer error (store, authn, permz, resolve,
// repostore, gitproto, lfs) into an apiError, falling back to Internal for
// anything unrecognized. Handlers call this once at the bottom of their
// error-handling switch instead of repeating kind-mapping logic per route.
func translateError(err error) *apiError {
	if err == nil {
		return nil
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, resolve.ErrNotFound):
		return notFound("resource not found")
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrConflict):
		return conflict(err.Error())
	case errors.Is(err, store.ErrRepoLimit):
		return conflict("namespace repo limit exceeded")
	case errors.Is(err, store.ErrFolderCycle):
		return unprocessable("folder parent would create a cycle")
	case errors.Is(err, store.ErrCrossNamespace):
		return unprocessable("resource belongs to a different namespace")
	case errors.Is(err, resolve.ErrInvalidSlug):
		return badRequest("invalid slug")
	case errors.Is(err, authn.ErrUnauthenticated), errors.Is(err, authn.ErrInvalidCredentialFormat):
		return newAPIError(KindUnauthenticated, "unauthenticated")
	case errors.Is(err, lfs.ErrMismatch):
		return unprocessable("object content does not match declared oid or size")
	case errors.Is(err, content.ErrAmbiguousRevision):
		return newAPIError(KindAmbiguousRevision, "revision is ambiguous")
	case errors.Is(err, content.ErrNotFound):
		return notFound("revision or object not found")
	default:
		return newAPIError(KindInternal, "internal error")
	}
}
