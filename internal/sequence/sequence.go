package sequence

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/progsnap2/internal/event"
)

// Scope declares whether and how events are comparably ordered.
type Scope string

const (
	// ScopeGlobal means any two events are comparable by EventID/Order.
	ScopeGlobal Scope = "Global"

	// ScopeRestricted means ordering is only meaningful within the groups
	// named by the scope columns (typically SubjectID).
	ScopeRestricted Scope = "Restricted"

	// ScopeNone asserts no ordering property between any two events.
	ScopeNone Scope = "None"
)

// ValidScopes defines allowed ordering scopes.
var ValidScopes = map[Scope]bool{
	ScopeGlobal:     true,
	ScopeRestricted: true,
	ScopeNone:       true,
}

// typeRank breaks ties between events that share a timestamp. Several
// events flow from a single submission at one instant; the submission
// sorts first, its results after.
var typeRank = map[event.EventType]int{
	event.TypeSubmit:        0,
	event.TypeCompile:       1,
	event.TypeCompileError:  2,
	event.TypeRunProgram:    3,
	event.TypeRunTest:       4,
	event.TypeFeedbackGrade: 5,
}

// rank returns the tie-break rank for t. Unranked types sort after all
// ranked ones, in arrival order.
func rank(t event.EventType) int {
	if r, ok := typeRank[t]; ok {
		return r
	}
	return len(typeRank)
}

// Sequencer assigns final EventID and Order values.
//
// The sequencer exclusively owns these assignments: no other component may
// mutate them once set.
type Sequencer struct {
	// Scope is the declared event-order scope of the dataset.
	Scope Scope

	// ScopeColumns names the grouping columns when Scope is Restricted.
	// Must be empty otherwise.
	ScopeColumns []string
}

// Sequence sorts the events in place and assigns identifiers.
//
// Steps, in order:
//  1. Stable sort by (timestamp, type rank); arrival order breaks remaining
//     ties. With a restricted scope, cross-group comparisons have no
//     meaning, but the stable sort keeps them deterministic.
//  2. Assign EventID and Order from sort position (0-based). Both reflect
//     position, never wall-clock values, and are therefore always in sync.
//  3. Resolve missing code-state references: an event without one inherits
//     the most recent code state assigned to the same subject, or the
//     empty-state sentinel if none exists.
//  4. Rewrite provisional parent references into the ParentEventID
//     attribute using final ids.
//
// Sequence must only run once the pool is complete; it is the barrier
// between collection and emission.
func (s *Sequencer) Sequence(events []*event.Event) error {
	if err := s.validateScope(); err != nil {
		return err
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return rank(a.Type) < rank(b.Type)
	})

	finalByProvisional := make(map[int64]int64, len(events))
	subjectStates := make(map[string]int64)

	for i, e := range events {
		e.EventID = int64(i)
		e.Order = int64(i)
		finalByProvisional[e.ProvisionalID] = e.EventID

		current, ok := subjectStates[e.SubjectID]
		if !ok {
			current = event.EmptyCodeState
		}
		if e.CodeStateID == event.UnresolvedCodeState {
			e.CodeStateID = current
		} else {
			current = e.CodeStateID
		}
		subjectStates[e.SubjectID] = current
	}

	// Second pass: cross-referencing columns are populated only after all
	// final ids exist, never from pre-sort identifiers.
	for _, e := range events {
		if e.ParentProvisionalID == event.Unassigned {
			continue
		}
		parentID, ok := finalByProvisional[e.ParentProvisionalID]
		if !ok {
			return event.NewMalformedInputError(e.Source, e.SubjectID,
				fmt.Sprintf("event %d references unknown parent record %d", e.EventID, e.ParentProvisionalID))
		}
		e.SetAttr("ParentEventID", strconv.FormatInt(parentID, 10))
	}

	return nil
}

// validateScope checks the scope declaration for internal consistency.
func (s *Sequencer) validateScope() error {
	if !ValidScopes[s.Scope] {
		return event.NewScopeViolationError(fmt.Sprintf("unknown event order scope %q", s.Scope))
	}
	if s.Scope == ScopeRestricted && len(s.ScopeColumns) == 0 {
		return event.NewScopeViolationError("restricted scope declared without scope columns")
	}
	if s.Scope != ScopeRestricted && len(s.ScopeColumns) > 0 {
		return event.NewScopeViolationError(fmt.Sprintf("scope columns given but scope is %s", s.Scope))
	}
	return nil
}
