package sink

import "context"

// Sink is a destination for serialized trace batches. Write receives one
// whole batch and must not retain p after returning.
type Sink interface {
	Write(ctx context.Context, p []byte) error
	Close() error
}
