package chrometrace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aalemi-dev/chrometrace/observability"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

// memSink records every write. The first failWrites writes fail.
type memSink struct {
	mu         sync.Mutex
	writes     [][]byte
	failWrites int
	closed     bool
}

func (m *memSink) Write(_ context.Context, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("write after close")
	}
	if m.failWrites > 0 {
		m.failWrites--
		return errors.New("disk full")
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSink) bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Join(m.writes, nil)
}

func (m *memSink) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// blockingSink holds every write until it is closed.
type blockingSink struct {
	release   chan struct{}
	closeOnce sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (b *blockingSink) Write(ctx context.Context, _ []byte) error {
	<-b.release
	return errors.New("broken pipe")
}

func (b *blockingSink) Close() error {
	b.closeOnce.Do(func() { close(b.release) })
	return nil
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, ctx)
}

func (r *recordingObserver) byOperation(op string) []observability.OperationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []observability.OperationContext
	for _, o := range r.ops {
		if o.Operation == op {
			out = append(out, o)
		}
	}
	return out
}

// wire is the decoded form of one output record.
type wire struct {
	Name  string                 `json:"name"`
	Cat   string                 `json:"cat"`
	Ph    string                 `json:"ph"`
	Ts    int64                  `json:"ts"`
	Pid   int64                  `json:"pid"`
	Tid   int64                  `json:"tid"`
	ID    string                 `json:"id"`
	Scope string                 `json:"s"`
	Args  map[string]interface{} `json:"args"`
}

func parseArray(t *testing.T, data []byte) []wire {
	t.Helper()
	var out []wire
	require.NoError(t, json.Unmarshal(data, &out), "output: %s", data)
	return out
}

func phases(events []wire) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Ph
	}
	return out
}

// newTestLayer returns a layer on a fake clock writing to memory. Every
// callback made without a pinned thread reports thread 1.
func newTestLayer(t *testing.T, cfg Config, opts ...Option) (*ChromeLayer, *memSink, *clockz.FakeClock) {
	t.Helper()
	sink := &memSink{}
	clock := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	base := []Option{
		WithSink(sink),
		WithClock(clock),
		WithThreadSource(func() ThreadID { return 1 }),
	}
	layer, err := NewLayer(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = layer.Shutdown(ctx)
	})
	return layer, sink, clock
}

func shutdown(t *testing.T, l *ChromeLayer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
}
