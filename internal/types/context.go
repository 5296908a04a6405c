package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxJobRunID  ContextKey = "ctx_job_run_id"

	HeaderRequestID = "X-Request-ID"

	// DefaultUserID is used for writes made by the scheduler itself
	DefaultUserID = "00000000-0000-0000-0000-000000000000"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// GetJobRunID returns the id of the daily check run the context belongs to
func GetJobRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(CtxJobRunID).(string); ok {
		return runID
	}
	return ""
}

// WithJobRunID tags the context with a fresh daily check run id
func WithJobRunID(ctx context.Context) (context.Context, string) {
	runID := GenerateUUIDWithPrefix(UUID_PREFIX_JOB_RUN)
	return context.WithValue(ctx, CtxJobRunID, runID), runID
}
