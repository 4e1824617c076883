package chrometrace

import (
	"fmt"
	"time"
)

// CallbackKind names the lifecycle callback being encoded.
type CallbackKind uint8

// Callback kinds.
const (
	CallbackNewSpan CallbackKind = iota
	CallbackEnter
	CallbackExit
	CallbackClose
	CallbackEvent
)

// String implements fmt.Stringer.
func (k CallbackKind) String() string {
	switch k {
	case CallbackNewSpan:
		return "new_span"
	case CallbackEnter:
		return "enter"
	case CallbackExit:
		return "exit"
	case CallbackClose:
		return "close"
	case CallbackEvent:
		return "event"
	}
	return "unknown"
}

// Event is an instantaneous record emitted by the host framework.
type Event struct {
	Name     string
	Category string
	Fields   []Field

	// Time, when set, is used instead of the callback time.
	Time time.Time

	// Span optionally names the span the event belongs to. An event made
	// with no thread on its context is drawn on that span's row.
	Span SpanID
}

// Snapshot is everything the encoder needs to know about the registry at
// the moment of a callback.
type Snapshot struct {
	Record SpanRecord
	Found  bool

	// First is set on an enter that activated the span for the first time.
	First bool

	// Thread is the row the interval is drawn on: the begin thread for
	// enter and exit.
	Thread ThreadID

	// Open is set on an exit that matched an open interval.
	Open bool

	// Nesting is the stack-discipline verdict for an exit.
	Nesting Nesting

	// Dangling lists threads of intervals still open when the span closed.
	Dangling []ThreadID

	// Event is the payload of CallbackEvent.
	Event *Event
}

// Encoder turns one callback into trace records. It is a pure function of
// its inputs and holds only immutable policy.
type Encoder struct {
	Misnest     string
	IncludeArgs bool
	Overrides   bool
}

// Encode translates one callback into zero or more records.
func (e Encoder) Encode(kind CallbackKind, id SpanID, who Identity, snap Snapshot) []TraceEvent {
	switch kind {
	case CallbackEnter:
		return e.enter(id, who, snap)
	case CallbackExit:
		return e.exit(id, who, snap)
	case CallbackClose:
		return e.close(id, who, snap)
	case CallbackEvent:
		return e.instant(who, snap)
	}
	return nil
}

func (e Encoder) enter(id SpanID, who Identity, snap Snapshot) []TraceEvent {
	if !snap.Found {
		return nil
	}
	rec := snap.Record
	if rec.Async {
		if !snap.First {
			return nil
		}
		return []TraceEvent{e.span(PhaseAsyncStart, id, rec, who, snap.Thread, true)}
	}
	return []TraceEvent{e.span(PhaseBegin, id, rec, who, snap.Thread, true)}
}

func (e Encoder) exit(id SpanID, who Identity, snap Snapshot) []TraceEvent {
	if !snap.Found || !snap.Open || snap.Record.Async {
		return nil
	}
	rec := snap.Record
	if snap.Nesting == NestOK {
		return []TraceEvent{e.span(PhaseEnd, id, rec, who, snap.Thread, false)}
	}
	switch e.Misnest {
	case MisnestEnd:
		return []TraceEvent{e.span(PhaseEnd, id, rec, who, snap.Thread, false)}
	case MisnestDrop:
		return nil
	}
	ev := e.span(PhaseInstant, id, rec, who, snap.Thread, false)
	ev.Scope = ScopeThread
	ev.Args = Args{{Key: "misnested", Value: Bool(true)}}
	if who.Bound {
		ev.Args = append(ev.Args, Field{Key: "exit_thread", Value: Int64(int64(who.ThreadID))})
	}
	return []TraceEvent{ev}
}

func (e Encoder) close(id SpanID, who Identity, snap Snapshot) []TraceEvent {
	if !snap.Found {
		return nil
	}
	rec := snap.Record
	if rec.Async {
		if !rec.started {
			return nil
		}
		return []TraceEvent{e.span(PhaseAsyncEnd, id, rec, who, rec.asyncThread, false)}
	}
	if len(snap.Dangling) == 0 {
		return nil
	}
	out := make([]TraceEvent, 0, len(snap.Dangling))
	for i := len(snap.Dangling) - 1; i >= 0; i-- {
		out = append(out, e.span(PhaseEnd, id, rec, who, snap.Dangling[i], false))
	}
	return out
}

// span builds a record for a span boundary. Args ride on the opening record
// only; the viewer merges B and E args anyway.
func (e Encoder) span(ph Phase, id SpanID, rec SpanRecord, who Identity, tid ThreadID, withArgs bool) TraceEvent {
	ev := TraceEvent{
		Phase:     ph,
		Name:      rec.Name,
		Category:  rec.Category,
		Timestamp: who.Timestamp,
		ProcessID: who.ProcessID,
		ThreadID:  tid,
	}
	if rec.hasPID {
		ev.ProcessID = rec.ProcessID
	}
	if ph == PhaseAsyncStart || ph == PhaseAsyncEnd {
		ev.ID = rec.ID
		if ev.ID == "" {
			ev.ID = formatSpanID(id)
		}
	} else if rec.ID != "" {
		ev.ID = rec.ID
	}
	if withArgs {
		ev.Duration = rec.Duration
		ev.ThreadTimestamp = rec.ThreadTimestamp
		if e.IncludeArgs && len(rec.Args) > 0 {
			ev.Args = rec.Args
		}
	}
	return ev
}

func (e Encoder) instant(who Identity, snap Snapshot) []TraceEvent {
	if snap.Event == nil {
		return nil
	}
	src := snap.Event
	ev := TraceEvent{
		Phase:     PhaseInstant,
		Name:      src.Name,
		Category:  src.Category,
		Timestamp: who.Timestamp,
		ProcessID: who.ProcessID,
		ThreadID:  who.ThreadID,
		Scope:     ScopeThread,
	}
	args := src.Fields
	if e.Overrides {
		args = applyEventOverrides(&ev, src.Fields)
		if ev.Phase != PhaseInstant {
			ev.Scope = ""
		}
	}
	if e.IncludeArgs && len(args) > 0 {
		ev.Args = Args(args)
	}
	return []TraceEvent{ev}
}

// Reserved field keys honoured when overrides are enabled.
const (
	FieldName      = "name"
	FieldCategory  = "cat"
	FieldID        = "id"
	FieldTimestamp = "ts"
	FieldProcessID = "pid"
	FieldThreadID  = "tid"

	// FieldPhase is honoured on instant events only, and only when it names
	// a known phase code. FieldDuration and FieldThreadTimestamp take
	// integer microseconds.
	FieldPhase           = "ph"
	FieldDuration        = "dur"
	FieldThreadTimestamp = "tts"

	// FieldEvent is always reserved on spans; the value "async" selects
	// async b/e records.
	FieldEvent = "event"

	// EventAsync is the FieldEvent value that marks an async span.
	EventAsync = "async"
)

func applyEventOverrides(ev *TraceEvent, fields []Field) []Field {
	var rest []Field
	for _, f := range fields {
		switch f.Key {
		case FieldName:
			ev.Name = f.Value.AsString()
			continue
		case FieldCategory:
			ev.Category = f.Value.AsString()
			continue
		case FieldID:
			ev.ID = f.Value.AsString()
			continue
		case FieldTimestamp:
			if ts, ok := f.Value.AsInt64(); ok {
				ev.Timestamp = ts
				continue
			}
		case FieldProcessID:
			if pid, ok := f.Value.AsInt64(); ok {
				ev.ProcessID = pid
				continue
			}
		case FieldThreadID:
			if tid, ok := f.Value.AsInt64(); ok {
				ev.ThreadID = ThreadID(tid)
				continue
			}
		case FieldPhase:
			if ph := Phase(f.Value.AsString()); ph.Known() {
				ev.Phase = ph
				continue
			}
		case FieldDuration:
			if dur, ok := f.Value.AsInt64(); ok {
				ev.Duration = dur
				continue
			}
		case FieldThreadTimestamp:
			if tts, ok := f.Value.AsInt64(); ok {
				ev.ThreadTimestamp = tts
				continue
			}
		}
		rest = append(rest, f)
	}
	return rest
}

// newSpanRecord builds the registry record for a span-create callback.
// FieldEvent is consumed; other reserved keys only when overrides are on.
func newSpanRecord(attrs SpanAttributes, who Identity, overrides bool) SpanRecord {
	rec := SpanRecord{
		Name:     attrs.Name,
		Category: attrs.Category,
		Start:    who.Timestamp,
		ThreadID: who.ThreadID,
		Parent:   attrs.Parent,
	}
	var args Args
	for _, f := range attrs.Fields {
		if f.Key == FieldEvent {
			rec.Async = f.Value.AsString() == EventAsync
			continue
		}
		if overrides && applySpanOverride(&rec, f) {
			continue
		}
		args = append(args, f)
	}
	rec.Args = args
	return rec
}

func applySpanOverride(rec *SpanRecord, f Field) bool {
	switch f.Key {
	case FieldName:
		rec.Name = f.Value.AsString()
		return true
	case FieldCategory:
		rec.Category = f.Value.AsString()
		return true
	case FieldID:
		rec.ID = f.Value.AsString()
		return true
	case FieldProcessID:
		if pid, ok := f.Value.AsInt64(); ok {
			rec.ProcessID = pid
			rec.hasPID = true
			return true
		}
	case FieldThreadID:
		if tid, ok := f.Value.AsInt64(); ok {
			rec.PinnedThread = ThreadID(tid)
			rec.hasTID = true
			return true
		}
	case FieldDuration:
		if dur, ok := f.Value.AsInt64(); ok {
			rec.Duration = dur
			return true
		}
	case FieldThreadTimestamp:
		if tts, ok := f.Value.AsInt64(); ok {
			rec.ThreadTimestamp = tts
			return true
		}
	}
	return false
}

func formatSpanID(id SpanID) string {
	return fmt.Sprintf("0x%016x", uint64(id))
}
