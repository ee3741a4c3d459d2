package registry

import "context"

type jobIDKey struct{}

// WithJobID attaches the job id the engine is processing, so
// processors can reach job-scoped resources such as stored
// attachments without widening the Processor signature.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFromContext returns the job id set by the engine, or "".
func JobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
