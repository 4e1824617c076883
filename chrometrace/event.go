package chrometrace

import (
	"encoding/json"
)

// Phase is the Chrome Trace Event Format code identifying an event's role.
type Phase string

// Phase codes as defined by the Trace Event Format.
const (
	PhaseBegin             Phase = "B"
	PhaseEnd               Phase = "E"
	PhaseComplete          Phase = "X"
	PhaseInstant           Phase = "i"
	PhaseCounter           Phase = "C"
	PhaseAsyncStart        Phase = "b"
	PhaseAsyncInstant      Phase = "n"
	PhaseAsyncEnd          Phase = "e"
	PhaseFlowStart         Phase = "s"
	PhaseFlowStep          Phase = "t"
	PhaseFlowEnd           Phase = "f"
	PhaseSample            Phase = "p"
	PhaseObjectCreated     Phase = "N"
	PhaseObjectSnapshot    Phase = "O"
	PhaseObjectDestroyed   Phase = "D"
	PhaseMetadata          Phase = "M"
	PhaseMemoryDumpGlobal  Phase = "V"
	PhaseMemoryDumpProcess Phase = "v"
	PhaseMark              Phase = "R"
	PhaseClockSync         Phase = "c"
	PhaseContextBegin      Phase = "("
	PhaseContextEnd        Phase = ")"
)

// Known reports whether p is one of the Trace Event Format phase codes.
func (p Phase) Known() bool {
	switch p {
	case PhaseBegin, PhaseEnd, PhaseComplete, PhaseInstant, PhaseCounter,
		PhaseAsyncStart, PhaseAsyncInstant, PhaseAsyncEnd,
		PhaseFlowStart, PhaseFlowStep, PhaseFlowEnd, PhaseSample,
		PhaseObjectCreated, PhaseObjectSnapshot, PhaseObjectDestroyed,
		PhaseMetadata, PhaseMemoryDumpGlobal, PhaseMemoryDumpProcess,
		PhaseMark, PhaseClockSync, PhaseContextBegin, PhaseContextEnd:
		return true
	}
	return false
}

// Instant event scopes.
const (
	ScopeThread  = "t"
	ScopeProcess = "p"
	ScopeGlobal  = "g"
)

// Metadata record names understood by the trace viewer.
const (
	MetadataProcessName = "process_name"
	MetadataThreadName  = "thread_name"
)

// TraceEvent is one record of the output document. It is a value type and is
// never mutated after the encoder builds it.
type TraceEvent struct {
	Phase     Phase
	Name      string
	Category  string
	Timestamp int64 // microseconds from the layer epoch
	ProcessID int64
	ThreadID  ThreadID
	ID        string // async and flow events only
	Scope     string // instant events only
	Args      Args

	// Duration and ThreadTimestamp are in microseconds and only set through
	// field overrides. Zero omits them.
	Duration        int64
	ThreadTimestamp int64
}

// wireEvent mirrors the Trace Event Format field names exactly.
type wireEvent struct {
	Name      string   `json:"name"`
	Category  string   `json:"cat"`
	Phase     Phase    `json:"ph"`
	Timestamp int64    `json:"ts"`
	ProcessID int64    `json:"pid"`
	ThreadID  ThreadID `json:"tid"`
	Duration  int64    `json:"dur,omitempty"`
	TTS       int64    `json:"tts,omitempty"`
	ID        string   `json:"id,omitempty"`
	Scope     string   `json:"s,omitempty"`
	Args      Args     `json:"args,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Name:      e.Name,
		Category:  e.Category,
		Phase:     e.Phase,
		Timestamp: e.Timestamp,
		ProcessID: e.ProcessID,
		ThreadID:  e.ThreadID,
		Duration:  e.Duration,
		TTS:       e.ThreadTimestamp,
		ID:        e.ID,
		Scope:     e.Scope,
		Args:      e.Args,
	})
}
