package obscontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	memberIDKey  contextKey = "member_id"
	jobIDKey     contextKey = "job_id"
)

// WithRequestID attaches the request correlation identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, empty when unset.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

// WithMemberID attaches the member under processing to the context.
func WithMemberID(ctx context.Context, memberID string) context.Context {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return ctx
	}
	return context.WithValue(ctx, memberIDKey, memberID)
}

// MemberIDFromContext returns the member identifier, empty when unset.
func MemberIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, memberIDKey)
}

// WithJobID attaches the queue job identifier to the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobIDFromContext returns the queue job identifier, empty when unset.
func JobIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, jobIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
