package global

import "context"

type partitionKey struct{}
type stepKey struct{}

// WithPartition decorates the context with the label of the partition
// operations are performed on, such that logs carry it.
func WithPartition(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, partitionKey{}, label)
}

// WithStep decorates the context with the name of the exercise step
// currently running.
func WithStep(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepKey{}, step)
}
