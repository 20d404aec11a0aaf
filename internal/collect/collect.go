package collect

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/progsnap2/internal/event"
)

// timestampLayouts are the accepted normalized timestamp forms. Source
// adapters convert their native formats to ISO-8601 before logging.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Record is one normalized source record handed to the pool.
type Record struct {
	// Timestamp is the source-assigned timestamp in ISO-8601 form.
	// Required.
	Timestamp string

	// SubjectID uniquely identifies the acting subject. Required.
	SubjectID string

	// Type classifies the action. Required and must satisfy the open
	// enumeration policy (core type or "X-" extension).
	Type event.EventType

	// ToolInstances describes the producing tool.
	ToolInstances string

	// CodeStateID carries an already-deduplicated code-state reference.
	// Only meaningful when HasCodeState is true.
	CodeStateID  int64
	HasCodeState bool

	// Parent links this record to a previously logged event (for
	// ParentEventID). May be nil.
	Parent *event.Event

	// Attributes holds optional columns for this record.
	Attributes map[string]string

	// Source names the log this record came from. Used by reconciliation.
	Source string
}

// Pool is the unordered collection of normalized events.
// Order of insertion is preserved only as a tie-breaking convenience for
// the sequencer's stable sort; no ordering property is asserted here.
type Pool struct {
	mu       sync.Mutex
	events   []*event.Event
	nextProv int64
}

// NewPool creates an empty event pool.
func NewPool() *Pool {
	return &Pool{}
}

// Log validates the record and adds it to the pool, returning the created
// event. A malformed record (missing subject, missing or unparseable
// timestamp, invalid event type) is rejected with a MALFORMED_INPUT_EVENT
// error.
func (p *Pool) Log(r Record) (*event.Event, error) {
	if r.SubjectID == "" {
		return nil, event.NewMalformedInputError(r.Source, "", "record has no subject id")
	}
	if r.Timestamp == "" {
		return nil, event.NewMalformedInputError(r.Source, r.SubjectID, "record has no timestamp")
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return nil, event.NewMalformedInputError(r.Source, r.SubjectID,
			fmt.Sprintf("unparseable timestamp %q", r.Timestamp))
	}
	if !r.Type.Valid() {
		return nil, event.NewMalformedInputError(r.Source, r.SubjectID,
			fmt.Sprintf("invalid event type %q", r.Type))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e := &event.Event{
		ProvisionalID:       p.nextProv,
		Timestamp:           ts,
		RawTimestamp:        r.Timestamp,
		SubjectID:           r.SubjectID,
		Type:                r.Type,
		ToolInstances:       r.ToolInstances,
		CodeStateID:         event.UnresolvedCodeState,
		ParentProvisionalID: event.Unassigned,
		Source:              r.Source,
		EventID:             event.Unassigned,
		Order:               event.Unassigned,
	}
	p.nextProv++

	if r.HasCodeState {
		e.CodeStateID = r.CodeStateID
	}
	if r.Parent != nil {
		e.ParentProvisionalID = r.Parent.ProvisionalID
	}
	for name, value := range r.Attributes {
		e.SetAttr(name, value)
	}

	p.events = append(p.events, e)
	return e, nil
}

// Events returns the pooled events in insertion order.
func (p *Pool) Events() []*event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*event.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Len returns the number of pooled events.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
