package collect

import (
	"fmt"

	"github.com/roach88/progsnap2/internal/event"
)

// ReconcilePolicy controls cross-source merging.
type ReconcilePolicy struct {
	// Window is the maximum timestamp distance (inclusive) between two
	// records describing the same action. Zero means exact match only.
	Window int // seconds
}

// Reconcile merges events from different source logs that describe the same
// underlying action into a single record.
//
// Two events merge when they come from different sources and agree on
// subject, tool instance and event type, with timestamps at most
// policy.Window seconds apart. The first-logged record of a merge group
// survives; the others contribute their attributes and (at most one)
// code-state reference.
//
// Conflicts abort: two sources claiming different code states, or different
// values for the same attribute, return a MALFORMED_INPUT_EVENT error since
// a malformed dataset must not be emitted as if valid.
func (p *Pool) Reconcile(policy ReconcilePolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := make([]*event.Event, 0, len(p.events))
	absorbed := make(map[*event.Event]bool)

	for i, e := range p.events {
		if absorbed[e] {
			continue
		}
		for _, other := range p.events[i+1:] {
			if absorbed[other] {
				continue
			}
			if !mergeCandidates(e, other, policy) {
				continue
			}
			if err := absorb(e, other); err != nil {
				return err
			}
			absorbed[other] = true
		}
		merged = append(merged, e)
	}

	p.events = merged
	return nil
}

// mergeCandidates reports whether a and b describe the same action per the
// join key (subject, tool, type, timestamp window, distinct sources).
func mergeCandidates(a, b *event.Event, policy ReconcilePolicy) bool {
	if a.Source == b.Source {
		return false
	}
	if a.SubjectID != b.SubjectID || a.ToolInstances != b.ToolInstances || a.Type != b.Type {
		return false
	}
	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return int(delta.Seconds()) <= policy.Window
}

// absorb folds other into dst. dst keeps its identity (provisional id,
// timestamp); other contributes attributes and code state.
func absorb(dst, other *event.Event) error {
	if other.CodeStateID != event.UnresolvedCodeState {
		if dst.CodeStateID != event.UnresolvedCodeState && dst.CodeStateID != other.CodeStateID {
			return event.NewMalformedInputError(other.Source, dst.SubjectID,
				fmt.Sprintf("sources %s and %s claim different code states (%d vs %d) for the same action",
					dst.Source, other.Source, dst.CodeStateID, other.CodeStateID))
		}
		dst.CodeStateID = other.CodeStateID
	}

	if other.ParentProvisionalID != event.Unassigned && dst.ParentProvisionalID == event.Unassigned {
		dst.ParentProvisionalID = other.ParentProvisionalID
	}

	for name, value := range other.Attributes {
		existing, ok := dst.Attributes[name]
		if ok && existing != value {
			return event.NewMalformedInputError(other.Source, dst.SubjectID,
				fmt.Sprintf("sources %s and %s disagree on attribute %s (%q vs %q)",
					dst.Source, other.Source, name, existing, value))
		}
		dst.SetAttr(name, value)
	}
	return nil
}
