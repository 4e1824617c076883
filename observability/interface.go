package observability

import "time"

// Observer receives a report for every operation a component performs off
// the hot path: sink writes, anomaly counts and similar background work.
//
// Observers are optional. A component without one behaves identically.
type Observer interface {
	// ObserveOperation is called once the operation has completed.
	// Implementations must not block; they are called from the flush task.
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes one completed operation.
type OperationContext struct {
	// Component names the reporting package, e.g. "chrometrace".
	Component string

	// Operation is what was done.
	// Examples: "write", "lookup_miss", "misnest"
	Operation string

	// Resource is the primary target, e.g. the output path or topic.
	Resource string

	// SubResource narrows Resource when it has parts (object key, partition).
	SubResource string

	// Duration is how long the operation took. Zero for pure counters.
	Duration time.Duration

	// Error is nil on success.
	Error error

	// Size is the amount of data involved: bytes for a write, a count for
	// anomaly reports.
	Size int64

	// Metadata holds extra operation-specific values.
	// Examples: {"records": 512, "queue_depth": 40}
	Metadata map[string]interface{}
}

// Observers fans a report out to every observer in the slice, skipping nils.
type Observers []Observer

// ObserveOperation implements Observer.
func (o Observers) ObserveOperation(ctx OperationContext) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveOperation(ctx)
		}
	}
}
