package event

import (
	"strings"
	"time"
)

// EventType names one kind of observed action, using the dotted names from
// the ProgSnap2 standard (e.g. "Submit", "Compile.Error", "Run.Program").
//
// The enumeration is open: core types are listed below, and any tool may
// introduce additional types as long as they carry the ExtensionPrefix.
type EventType string

// Core event types. This is the documented subset the converters emit;
// consumers must tolerate types outside this list when they carry the
// extension prefix.
const (
	TypeSessionStart  EventType = "Session.Start"
	TypeSubmit        EventType = "Submit"
	TypeCompile       EventType = "Compile"
	TypeCompileError  EventType = "Compile.Error"
	TypeRunProgram    EventType = "Run.Program"
	TypeRunTest       EventType = "Run.Test"
	TypeFileEdit      EventType = "File.Edit"
	TypeFeedbackGrade EventType = "Feedback.Grade"
	TypeIntervention  EventType = "Intervention"
)

// ExtensionPrefix marks event types outside the documented core set.
// Example: "X-View.Blocks".
const ExtensionPrefix = "X-"

// coreTypes is the closed portion of the taxonomy.
var coreTypes = map[EventType]bool{
	TypeSessionStart:  true,
	TypeSubmit:        true,
	TypeCompile:       true,
	TypeCompileError:  true,
	TypeRunProgram:    true,
	TypeRunTest:       true,
	TypeFileEdit:      true,
	TypeFeedbackGrade: true,
	TypeIntervention:  true,
}

// IsExtension reports whether t carries the extension prefix.
func (t EventType) IsExtension() bool {
	return strings.HasPrefix(string(t), ExtensionPrefix)
}

// Valid reports whether t is a core type or a well-formed extension.
// The extension policy: anything outside the core set must use the
// "X-" prefix.
func (t EventType) Valid() bool {
	if t == "" {
		return false
	}
	return coreTypes[t] || t.IsExtension()
}

// Sentinel values for fields that are only assigned later in the pipeline.
const (
	// Unassigned marks EventID and Order before sequencing.
	Unassigned int64 = -1

	// UnresolvedCodeState marks an event that has not yet been linked to a
	// code state. The sequencer resolves it to the subject's most recent
	// state, or to EmptyCodeState if the subject has none.
	UnresolvedCodeState int64 = -1

	// EmptyCodeState is the reserved identifier for "no code yet".
	// It is never materialized as a directory.
	EmptyCodeState int64 = 0
)

// Event is one observed action in a programming session.
//
// Lifecycle: created during collection (with a provisional id), optionally
// enriched with a code-state reference during deduplication, then assigned
// its final EventID and Order during sequencing. Immutable afterwards.
type Event struct {
	// ProvisionalID is assigned at collection time from an auto-incrementing
	// counter. It exists only so that records created before the global sort
	// (e.g. ParentEventID links) can be remapped to final ids afterwards.
	// It never appears in emitted output.
	ProvisionalID int64

	// Timestamp is the parsed source-assigned timestamp, used as the primary
	// sort key.
	Timestamp time.Time

	// RawTimestamp is the timestamp as normalized from the source log
	// (ISO-8601). Emitted as the ServerTimestamp column.
	RawTimestamp string

	// SubjectID uniquely identifies the acting subject (student).
	SubjectID string

	// Type classifies the action.
	Type EventType

	// ToolInstances describes the tool that produced the event
	// (e.g. "VPL 3.3.1").
	ToolInstances string

	// CodeStateID references the deduplicated code state, or
	// UnresolvedCodeState until the sequencer resolves it.
	CodeStateID int64

	// ParentProvisionalID links a subordinate event (compile result, grade)
	// to the provisional id of its parent event, or Unassigned. The
	// sequencer rewrites it into the ParentEventID attribute using final ids.
	ParentProvisionalID int64

	// Attributes holds optional columns (Score, CompileMessageData, ...).
	// Keys must be valid ProgSnap2 column names.
	Attributes map[string]string

	// Source names the log this event came from ("submissions", "events").
	// Used by reconciliation and diagnostics only; never emitted.
	Source string

	// EventID and Order are assigned by the sequencer from sort position.
	// Both hold Unassigned until then, and are always equal afterwards.
	EventID int64
	Order   int64
}

// Attr returns the named optional attribute, or "".
func (e *Event) Attr(name string) string {
	return e.Attributes[name]
}

// SetAttr sets an optional attribute, allocating the map on first use.
func (e *Event) SetAttr(name, value string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[name] = value
}

// Sequenced reports whether the event has received its final identifier.
func (e *Event) Sequenced() bool {
	return e.EventID != Unassigned
}
