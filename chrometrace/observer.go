package chrometrace

import (
	"time"

	"github.com/aalemi-dev/chrometrace/observability"
)

// observeOperation notifies the observer about a flush task operation if
// one is configured.
//
// Operations:
//   - "write": one sink write; Size is the payload in bytes
//   - "lookup_miss": Size is the number of misses since the last report
//   - "misnest": Size is the number of misnested exits since the last report
func (l *ChromeLayer) observeOperation(operation string, duration time.Duration, err error, size int64, metadata map[string]interface{}) {
	if l == nil || l.observer == nil {
		return
	}

	l.observer.ObserveOperation(observability.OperationContext{
		Component: "chrometrace",
		Operation: operation,
		Resource:  l.cfg.OutputPath,
		Duration:  duration,
		Error:     err,
		Size:      size,
		Metadata:  metadata,
	})
}
