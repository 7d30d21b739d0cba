// Package audit writes cutman's append-only record of privileged
// mutations to the audit_log table, enriched with the request's
// correlation id and acting principal.
package audit

import (
	"context"
	"encoding/json"
	"strings"

	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/obs"
	"cutman.dev/cutman/internal/store"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit entries to a Store, falling back to the process's
// structured logger if the write itself fails.
type Logger struct {
	store *store.Store
}

// NewLogger builds a Logger backed by st.
func NewLogger(st *store.Store) *Logger {
	return &Logger{store: st}
}

// LogEvent records one audit entry enriched with request and actor
// context. A persistence failure is logged but never returned: losing an
// audit line must not block the mutation it describes.
func (l *Logger) LogEvent(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	requestID := requestIDFromContext(ctx)

	var actorID *string
	if p, ok := authn.PrincipalFromContext(ctx); ok && p.UserID != "" {
		id := p.UserID
		actorID = &id
	}

	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		obs.LogRequest(map[string]any{"level": "error", "msg": "audit: marshal fields failed", "event": event})
		return
	}

	if err := l.store.RecordAudit(ctx, requestID, actorID, event, string(fieldsJSON)); err != nil {
		obs.LogRequest(map[string]any{
			"level": "error", "msg": "audit: write failed", "event": event, "error": err.Error(),
		})
	}
}
