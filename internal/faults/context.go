package faults

import "context"

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	bucketKey contextKey = "bucket"
)

// WithRunID annotates context with the sort run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBucket annotates context with the extension bucket a unit of work targets.
func WithBucket(ctx context.Context, bucket string) context.Context {
	if bucket == "" {
		return ctx
	}
	return context.WithValue(ctx, bucketKey, bucket)
}

// BucketFromContext returns the bucket label if present.
func BucketFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(bucketKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
