package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"github.com/aalemi-dev/chrometrace/tracer"
)

// firstWorkerThread numbers the worker rows. It stays below
// chrometrace.LaneBase so pinned rows never share a lane.
const firstWorkerThread chrometrace.ThreadID = 1_000_000

// asyncSpanBase keeps directly created span ids clear of OpenTelemetry's.
const asyncSpanBase chrometrace.SpanID = 1 << 62

var errSynthetic = errors.New("synthetic failure")

// workload drives the layer from several goroutines. Request spans go
// through the OpenTelemetry bridge; each worker also holds one async job
// span open across its whole run and marks progress with instant events.
type workload struct {
	cfg    workloadConfig
	layer  chrometrace.Layer
	tracer tracer.Tracer

	nextAsync atomic.Uint64
}

func newWorkload(cfg workloadConfig, layer chrometrace.Layer, t tracer.Tracer) *workload {
	return &workload{cfg: cfg, layer: layer, tracer: t}
}

func (w *workload) run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			w.worker(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (w *workload) worker(ctx context.Context, worker int) {
	tid := firstWorkerThread + chrometrace.ThreadID(worker)
	ctx = chrometrace.WithThreadID(ctx, tid)
	w.layer.SetThreadName(tid, fmt.Sprintf("worker-%d", worker))

	job := asyncSpanBase + chrometrace.SpanID(w.nextAsync.Add(1))
	w.layer.OnNewSpan(ctx, job, chrometrace.SpanAttributes{
		Name:     "job",
		Category: "demo",
		Fields: []chrometrace.Field{
			chrometrace.F(chrometrace.FieldEvent, chrometrace.EventAsync),
			chrometrace.F("worker", worker),
		},
	})
	w.layer.OnEnter(ctx, job)
	defer w.layer.OnClose(ctx, job)

	for n := 0; n < w.cfg.Iterations; n++ {
		if ctx.Err() != nil {
			return
		}
		w.request(ctx, worker, n)
		if n%10 == 0 {
			w.layer.OnEvent(ctx, chrometrace.Event{
				Name:     "progress",
				Category: "demo",
				Fields:   []chrometrace.Field{chrometrace.F("done", n)},
				Time:     time.Now(),
			})
		}
	}
}

func (w *workload) request(ctx context.Context, worker, n int) {
	ctx, span := w.tracer.StartSpan(ctx, "request")
	defer span.End()
	span.SetAttributes(map[string]interface{}{
		"worker":    worker,
		"iteration": n,
	})

	w.stage(ctx, 1)
	if n%17 == 0 {
		span.RecordError(errSynthetic)
	}
}

func (w *workload) stage(ctx context.Context, depth int) {
	ctx, span := w.tracer.StartSpan(ctx, fmt.Sprintf("stage-%d", depth))
	defer span.End()

	time.Sleep(time.Duration(depth) * 50 * time.Microsecond)
	span.AddEvent("checkpoint", map[string]interface{}{"depth": depth})
	if depth < w.cfg.Depth {
		w.stage(ctx, depth+1)
	}
}
