package observability

// NoOpObserver discards every report.
type NoOpObserver struct{}

// ObserveOperation does nothing.
func (n *NoOpObserver) ObserveOperation(ctx OperationContext) {}

// NewNoOpObserver returns an Observer that discards every report.
func NewNoOpObserver() Observer {
	return &NoOpObserver{}
}
