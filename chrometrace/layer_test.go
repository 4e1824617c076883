package chrometrace

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_SpanWithCheckpoint(t *testing.T) {
	t.Parallel()
	layer, sink, clock := newTestLayer(t, Config{})
	ctx := WithThreadID(context.Background(), 1)

	layer.OnNewSpan(ctx, 7, SpanAttributes{Name: "work", Category: "app"})
	clock.Advance(100 * time.Microsecond)
	layer.OnEnter(ctx, 7)
	clock.Advance(50 * time.Microsecond)
	layer.OnEvent(ctx, Event{Name: "checkpoint", Fields: []Field{F("progress", 50)}})
	clock.Advance(100 * time.Microsecond)
	layer.OnExit(ctx, 7)
	clock.Advance(10 * time.Microsecond)
	layer.OnClose(ctx, 7)
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Len(t, events, 3)

	assert.Equal(t, "B", events[0].Ph)
	assert.Equal(t, "work", events[0].Name)
	assert.Equal(t, "app", events[0].Cat)
	assert.Equal(t, int64(100), events[0].Ts)
	assert.Equal(t, int64(1), events[0].Tid)

	assert.Equal(t, "i", events[1].Ph)
	assert.Equal(t, "checkpoint", events[1].Name)
	assert.Equal(t, int64(150), events[1].Ts)
	assert.Equal(t, "t", events[1].Scope)
	assert.Equal(t, map[string]interface{}{"progress": float64(50)}, events[1].Args)

	assert.Equal(t, "E", events[2].Ph)
	assert.Equal(t, int64(250), events[2].Ts)
	assert.Equal(t, int64(1), events[2].Tid)
	assert.Equal(t, layer.resolver.ProcessID(), events[2].Pid)

	assert.True(t, sink.isClosed())
	assert.Equal(t, StateClosed, layer.State())
}

func TestLayer_EmptyRunIsValidJSON(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	shutdown(t, layer)

	assert.Equal(t, "[\n\n]\n", string(sink.bytes()))
	assert.Empty(t, parseArray(t, sink.bytes()))
}

func TestLayer_ObjectFormat(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{Format: FormatObject})
	layer.OnEvent(context.Background(), Event{Name: "tick"})
	shutdown(t, layer)

	var doc struct {
		TraceEvents     []wire `json:"traceEvents"`
		DisplayTimeUnit string `json:"displayTimeUnit"`
	}
	require.NoError(t, json.Unmarshal(sink.bytes(), &doc))
	require.Len(t, doc.TraceEvents, 1)
	assert.Equal(t, "tick", doc.TraceEvents[0].Name)
	assert.Equal(t, "ms", doc.DisplayTimeUnit)
}

func TestLayer_ArgsKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	layer.OnEvent(context.Background(), Event{Name: "ordered", Fields: []Field{
		F("zeta", 1), F("alpha", "a"), F("mid", true),
	}})
	shutdown(t, layer)

	out := string(sink.bytes())
	assert.Contains(t, out, `"args":{"zeta":1,"alpha":"a","mid":true}`)
}

func TestLayer_OmitArgs(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{OmitArgs: true})
	layer.OnNewSpan(context.Background(), 1, SpanAttributes{Name: "s", Fields: []Field{F("k", "v")}})
	layer.OnEnter(context.Background(), 1)
	layer.OnExit(context.Background(), 1)
	layer.OnClose(context.Background(), 1)
	shutdown(t, layer)

	for _, ev := range parseArray(t, sink.bytes()) {
		assert.Nil(t, ev.Args)
	}
}

func TestLayer_ConcurrentProducers(t *testing.T) {
	t.Parallel()
	const producers, spans = 8, 500

	sink := &memSink{}
	layer, err := NewLayer(Config{FlushInterval: time.Millisecond, MaxBatchSize: 64}, WithSink(sink))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			ctx := WithThreadID(context.Background(), ThreadID(p+1))
			for j := 0; j < spans; j++ {
				id := SpanID(p*spans + j + 1)
				layer.OnNewSpan(ctx, id, SpanAttributes{Name: "op"})
				layer.OnEnter(ctx, id)
				layer.OnExit(ctx, id)
				layer.OnClose(ctx, id)
			}
		}(p)
	}
	wg.Wait()
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	begins, ends := 0, 0
	lastTs := map[int64]int64{}
	for _, ev := range events {
		switch ev.Ph {
		case "B":
			begins++
		case "E":
			ends++
		}
		assert.GreaterOrEqual(t, ev.Ts, lastTs[ev.Tid], "timestamps on thread %d went backwards", ev.Tid)
		lastTs[ev.Tid] = ev.Ts
	}
	assert.Equal(t, producers*spans, begins)
	assert.Equal(t, producers*spans, ends)

	d := layer.Diagnostics()
	assert.Equal(t, int64(2*producers*spans), d.EventsWritten)
	assert.Zero(t, d.LookupMisses)
	assert.Zero(t, d.Misnested)
	assert.Zero(t, d.OpenSpans)
}

func TestLayer_UnpinnedProducersStayNested(t *testing.T) {
	t.Parallel()
	const producers, spans = 8, 500

	sink := &memSink{}
	layer, err := NewLayer(Config{FlushInterval: time.Millisecond, MaxBatchSize: 64}, WithSink(sink))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			ctx := context.Background()
			for j := 0; j < spans; j++ {
				id := SpanID(p*spans + j + 1)
				layer.OnNewSpan(ctx, id, SpanAttributes{Name: "op"})
				layer.OnEnter(ctx, id)
				runtime.Gosched()
				layer.OnExit(ctx, id)
				layer.OnClose(ctx, id)
			}
		}(p)
	}
	wg.Wait()
	shutdown(t, layer)

	counts := map[string]int{}
	open := map[int64]int{}
	for _, ev := range parseArray(t, sink.bytes()) {
		counts[ev.Ph]++
		switch ev.Ph {
		case "B":
			open[ev.Tid]++
			assert.Equal(t, 1, open[ev.Tid], "two roots open on thread %d", ev.Tid)
		case "E":
			open[ev.Tid]--
		}
	}
	assert.Equal(t, producers*spans, counts["B"])
	assert.Equal(t, producers*spans, counts["E"])
	assert.Zero(t, counts["i"])

	d := layer.Diagnostics()
	assert.Zero(t, d.Misnested)
	assert.Zero(t, d.OpenSpans)
}

func TestLayer_UnpinnedChildrenFollowParent(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{}, WithThreadSource(nil))
	ctx := context.Background()

	layer.OnNewSpan(ctx, 1, SpanAttributes{Name: "request"})
	layer.OnEnter(ctx, 1)
	layer.OnNewSpan(ctx, 2, SpanAttributes{Name: "query", Parent: 1})
	layer.OnEnter(ctx, 2)
	// A sibling entered while 2 is innermost cannot share the row.
	layer.OnNewSpan(ctx, 3, SpanAttributes{Name: "cache", Parent: 1})
	layer.OnEnter(ctx, 3)
	layer.OnEvent(ctx, Event{Name: "hit", Span: 3})
	layer.OnExit(ctx, 2)
	layer.OnClose(ctx, 2)
	layer.OnExit(ctx, 3)
	layer.OnClose(ctx, 3)
	layer.OnExit(ctx, 1)
	layer.OnClose(ctx, 1)
	shutdown(t, layer)

	rows := map[string]int64{}
	var names []string
	for _, ev := range parseArray(t, sink.bytes()) {
		if ev.Ph == "M" {
			names = append(names, ev.Args["name"].(string))
			continue
		}
		rows[ev.Ph+":"+ev.Name] = ev.Tid
	}
	assert.Equal(t, int64(LaneBase), rows["B:request"])
	assert.Equal(t, rows["B:request"], rows["B:query"])
	assert.Equal(t, rows["B:query"], rows["E:query"])
	assert.Equal(t, int64(LaneBase+1), rows["B:cache"])
	assert.Equal(t, rows["B:cache"], rows["i:hit"])
	assert.Equal(t, rows["B:cache"], rows["E:cache"])
	assert.Equal(t, []string{"lane 0", "lane 1"}, names)
	assert.Zero(t, layer.Diagnostics().Misnested)
}

func TestLayer_UnpinnedRootsReuseLanes(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{}, WithThreadSource(nil))
	ctx := context.Background()

	for id := SpanID(1); id <= 3; id++ {
		layer.OnNewSpan(ctx, id, SpanAttributes{Name: "tick"})
		layer.OnEnter(ctx, id)
		layer.OnExit(ctx, id)
		layer.OnClose(ctx, id)
	}
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Equal(t, []string{"M", "B", "E", "B", "E", "B", "E"}, phases(events))
	for _, ev := range events {
		assert.Equal(t, int64(LaneBase), ev.Tid)
	}
}

func TestLayer_LookupMissEmitsNothing(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	layer, sink, _ := newTestLayer(t, Config{}, WithObserver(obs))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		layer.OnEnter(ctx, 404)
		layer.OnExit(ctx, 404)
		layer.OnClose(ctx, 404)
	})
	shutdown(t, layer)

	assert.Empty(t, parseArray(t, sink.bytes()))
	assert.Equal(t, int64(3), layer.Diagnostics().LookupMisses)

	misses := obs.byOperation("lookup_miss")
	require.Len(t, misses, 1)
	assert.Equal(t, int64(3), misses[0].Size)
	assert.Equal(t, "chrometrace", misses[0].Component)
}

func TestLayer_MisnestPolicies(t *testing.T) {
	t.Parallel()
	cases := []struct {
		policy string
		want   []string
	}{
		{MisnestInstant, []string{"B", "B", "i", "E"}},
		{MisnestEnd, []string{"B", "B", "E", "E"}},
		{MisnestDrop, []string{"B", "B", "E"}},
	}

	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			t.Parallel()
			layer, sink, _ := newTestLayer(t, Config{MisnestPolicy: tc.policy})
			ctx := context.Background()

			layer.OnNewSpan(ctx, 1, SpanAttributes{Name: "outer"})
			layer.OnNewSpan(ctx, 2, SpanAttributes{Name: "inner"})
			layer.OnEnter(ctx, 1)
			layer.OnEnter(ctx, 2)
			layer.OnExit(ctx, 1)
			layer.OnExit(ctx, 2)
			layer.OnClose(ctx, 2)
			layer.OnClose(ctx, 1)
			shutdown(t, layer)

			events := parseArray(t, sink.bytes())
			assert.Equal(t, tc.want, phases(events))
			assert.Equal(t, int64(1), layer.Diagnostics().Misnested)

			if tc.policy == MisnestInstant {
				assert.Equal(t, "outer", events[2].Name)
				assert.Equal(t, true, events[2].Args["misnested"])
				assert.Equal(t, "inner", events[3].Name)
			}
		})
	}
}

func TestLayer_ExitOnOtherThreadEndsOnBeginThread(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})

	layer.OnNewSpan(WithThreadID(context.Background(), 1), 9, SpanAttributes{Name: "migrating"})
	layer.OnEnter(WithThreadID(context.Background(), 1), 9)
	layer.OnExit(WithThreadID(context.Background(), 2), 9)
	layer.OnClose(WithThreadID(context.Background(), 2), 9)
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Equal(t, []string{"B", "E"}, phases(events))
	assert.Equal(t, int64(1), events[0].Tid)
	assert.Equal(t, int64(1), events[1].Tid)
}

func TestLayer_ReentryProducesPairs(t *testing.T) {
	t.Parallel()
	layer, sink, clock := newTestLayer(t, Config{})
	ctx := context.Background()

	layer.OnNewSpan(ctx, 3, SpanAttributes{Name: "poll"})
	for i := 0; i < 3; i++ {
		layer.OnEnter(ctx, 3)
		clock.Advance(5 * time.Microsecond)
		layer.OnExit(ctx, 3)
		clock.Advance(5 * time.Microsecond)
	}
	layer.OnClose(ctx, 3)
	layer.OnExit(ctx, 3)
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	assert.Equal(t, []string{"B", "E", "B", "E", "B", "E"}, phases(events))
	for i := 0; i < len(events); i += 2 {
		assert.LessOrEqual(t, events[i].Ts, events[i+1].Ts)
	}
	assert.Equal(t, int64(1), layer.Diagnostics().LookupMisses)
}

func TestLayer_UnmatchedExitIsCounted(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	ctx := context.Background()

	layer.OnNewSpan(ctx, 5, SpanAttributes{Name: "never-entered"})
	layer.OnExit(ctx, 5)
	layer.OnClose(ctx, 5)
	shutdown(t, layer)

	assert.Empty(t, parseArray(t, sink.bytes()))
	assert.Equal(t, int64(1), layer.Diagnostics().UnmatchedExits)
}

func TestLayer_CloseEndsOpenInterval(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	ctx := context.Background()

	layer.OnNewSpan(ctx, 4, SpanAttributes{Name: "abandoned"})
	layer.OnEnter(ctx, 4)
	layer.OnClose(ctx, 4)
	shutdown(t, layer)

	assert.Equal(t, []string{"B", "E"}, phases(parseArray(t, sink.bytes())))
}

func TestLayer_AsyncSpan(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})

	layer.OnNewSpan(context.Background(), 0x2a, SpanAttributes{
		Name:   "request",
		Fields: []Field{F(FieldEvent, EventAsync), F("route", "/users")},
	})
	layer.OnEnter(WithThreadID(context.Background(), 1), 0x2a)
	layer.OnExit(WithThreadID(context.Background(), 1), 0x2a)
	layer.OnEnter(WithThreadID(context.Background(), 2), 0x2a)
	layer.OnExit(WithThreadID(context.Background(), 2), 0x2a)
	layer.OnClose(WithThreadID(context.Background(), 3), 0x2a)
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Equal(t, []string{"b", "e"}, phases(events))
	assert.Equal(t, "0x000000000000002a", events[0].ID)
	assert.Equal(t, events[0].ID, events[1].ID)
	assert.Equal(t, map[string]interface{}{"route": "/users"}, events[0].Args)
	assert.Equal(t, int64(1), events[0].Tid)
	assert.Equal(t, events[0].Tid, events[1].Tid)
	assert.Zero(t, layer.Diagnostics().UnmatchedExits)
}

func TestLayer_AsyncSpanHonoursThreadOverride(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{FieldOverrides: true})
	ctx := context.Background()

	layer.OnNewSpan(ctx, 9, SpanAttributes{
		Name:   "upload",
		Fields: []Field{F(FieldEvent, EventAsync), F(FieldThreadID, 42)},
	})
	layer.OnEnter(ctx, 9)
	layer.OnExit(ctx, 9)
	layer.OnClose(WithThreadID(ctx, 5), 9)
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Equal(t, []string{"b", "e"}, phases(events))
	assert.Equal(t, int64(42), events[0].Tid)
	assert.Equal(t, int64(42), events[1].Tid)
	assert.Nil(t, events[0].Args)
}

func TestLayer_FieldOverrides(t *testing.T) {
	t.Parallel()

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		layer, sink, _ := newTestLayer(t, Config{FieldOverrides: true})
		layer.OnEvent(context.Background(), Event{Name: "raw", Fields: []Field{
			F(FieldName, "renamed"), F(FieldTimestamp, 42), F(FieldThreadID, "7"), F("kept", 1),
		}})
		layer.OnNewSpan(context.Background(), 1, SpanAttributes{Name: "s", Fields: []Field{
			F(FieldCategory, "db"), F(FieldThreadID, 99),
		}})
		layer.OnEnter(context.Background(), 1)
		layer.OnExit(context.Background(), 1)
		layer.OnClose(context.Background(), 1)
		shutdown(t, layer)

		events := parseArray(t, sink.bytes())
		require.Len(t, events, 3)
		assert.Equal(t, "renamed", events[0].Name)
		assert.Equal(t, int64(42), events[0].Ts)
		assert.Equal(t, int64(7), events[0].Tid)
		assert.Equal(t, map[string]interface{}{"kept": float64(1)}, events[0].Args)
		assert.Equal(t, "db", events[1].Cat)
		assert.Equal(t, int64(99), events[1].Tid)
		assert.Equal(t, int64(99), events[2].Tid)
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		layer, sink, _ := newTestLayer(t, Config{})
		layer.OnEvent(context.Background(), Event{Name: "raw", Fields: []Field{F(FieldName, "renamed")}})
		shutdown(t, layer)

		events := parseArray(t, sink.bytes())
		require.Len(t, events, 1)
		assert.Equal(t, "raw", events[0].Name)
		assert.Equal(t, "renamed", events[0].Args["name"])
	})
}

func TestLayer_MetadataRecords(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{ProcessName: "indexer"})
	layer.SetThreadName(3, "worker-3")
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Len(t, events, 2)
	assert.Equal(t, "M", events[0].Ph)
	assert.Equal(t, MetadataProcessName, events[0].Name)
	assert.Equal(t, "indexer", events[0].Args["name"])
	assert.Equal(t, MetadataThreadName, events[1].Name)
	assert.Equal(t, int64(3), events[1].Tid)
	assert.Equal(t, "worker-3", events[1].Args["name"])
}

func TestLayer_EventTimeIsHonoured(t *testing.T) {
	t.Parallel()
	layer, sink, clock := newTestLayer(t, Config{})
	start := clock.Now()
	clock.Advance(time.Second)

	layer.OnEvent(context.Background(), Event{Name: "late", Time: start.Add(300 * time.Microsecond)})
	layer.OnEvent(context.Background(), Event{Name: "early", Time: start.Add(-time.Hour)})
	shutdown(t, layer)

	events := parseArray(t, sink.bytes())
	require.Len(t, events, 2)
	assert.Equal(t, int64(300), events[0].Ts)
	assert.Equal(t, int64(0), events[1].Ts)
}

func TestLayer_FlushWritesPending(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})

	layer.OnEvent(context.Background(), Event{Name: "one"})
	require.NoError(t, layer.Flush(context.Background()))
	assert.Equal(t, "[\n", string(sink.bytes()[:2]))
	assert.Contains(t, string(sink.bytes()), `"name":"one"`)

	layer.OnEvent(context.Background(), Event{Name: "two"})
	require.NoError(t, layer.Flush(context.Background()))
	assert.Contains(t, string(sink.bytes()), ",\n")

	d := layer.Diagnostics()
	assert.Equal(t, int64(2), d.BatchesWritten)
	assert.Equal(t, int64(2), d.EventsWritten)
	assert.Zero(t, d.QueueDepth)
}

func TestLayer_WriteFailureKeepsFlushing(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	layer, sink, _ := newTestLayer(t, Config{}, WithObserver(obs))
	sink.failWrites = 1

	layer.OnEvent(context.Background(), Event{Name: "lost"})
	require.NoError(t, layer.Flush(context.Background()))
	require.ErrorIs(t, layer.Err(), ErrSinkWrite)

	layer.OnEvent(context.Background(), Event{Name: "kept"})
	err := layer.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrSinkWrite)

	events := parseArray(t, sink.bytes())
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].Name)

	d := layer.Diagnostics()
	assert.Equal(t, int64(1), d.WriteFailures)
	assert.Equal(t, int64(1), d.DroppedOnWrite)

	writes := obs.byOperation("write")
	require.NotEmpty(t, writes)
	assert.Error(t, writes[0].Error)
}

func TestLayer_PushAfterClose(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	layer.OnEvent(context.Background(), Event{Name: "before"})
	shutdown(t, layer)

	assert.NotPanics(t, func() {
		layer.OnEvent(context.Background(), Event{Name: "after"})
	})
	assert.Equal(t, int64(1), layer.Diagnostics().PushedAfterClose)
	assert.ErrorIs(t, layer.Flush(context.Background()), ErrLayerClosed)
	assert.NoError(t, layer.Shutdown(context.Background()))

	events := parseArray(t, sink.bytes())
	require.Len(t, events, 1)
	assert.Equal(t, "before", events[0].Name)
}

func TestLayer_ShutdownTimeoutThenForceClose(t *testing.T) {
	t.Parallel()
	blocked := newBlockingSink()
	layer, err := NewLayer(Config{}, WithSink(blocked))
	require.NoError(t, err)

	layer.OnEvent(context.Background(), Event{Name: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = layer.Shutdown(ctx)
	require.ErrorIs(t, err, ErrShutdownTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateDraining, layer.State())
	assert.ErrorIs(t, layer.Flush(context.Background()), ErrShutdownInProgress)

	require.NoError(t, layer.ForceClose())
	require.Eventually(t, func() bool {
		return layer.State() == StateClosed
	}, 5*time.Second, 5*time.Millisecond)
	assert.Error(t, layer.Err())
}

func TestLayer_ConcurrentShutdownCalls(t *testing.T) {
	t.Parallel()
	layer, sink, _ := newTestLayer(t, Config{})
	layer.OnEvent(context.Background(), Event{Name: "x"})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = layer.Shutdown(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, strings.Count(string(sink.bytes()), "]"))
}

func TestNewLayer_InvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := NewLayer(Config{MisnestPolicy: "repair"}, WithSink(&memSink{}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
