package codestate

import (
	"sort"
	"sync"

	"github.com/roach88/progsnap2/internal/event"
)

// State pairs an assigned identifier with its snapshot.
type State struct {
	ID       int64
	Digest   string
	Snapshot Snapshot
}

// Dedup assigns stable integer identifiers to snapshots by content.
//
// Identifier 0 is permanently reserved for the empty snapshot; the first
// distinct non-empty snapshot gets 1, the next 2, and so on in observation
// order. For a fixed set of inputs processed in a fixed relative order the
// same identifiers are produced on every run.
//
// Dedup is safe for concurrent use: identifier assignment is serialized so
// that at most one identifier is ever assigned per distinct digest.
type Dedup struct {
	mu     sync.Mutex
	byHash map[string]int64
	states map[int64]State
	next   int64
}

// NewDedup creates an empty deduplicator with the sentinel pre-registered.
func NewDedup() *Dedup {
	d := &Dedup{
		byHash: make(map[string]int64),
		states: make(map[int64]State),
		next:   1,
	}
	empty := Snapshot{}
	digest := empty.Digest()
	d.byHash[digest] = event.EmptyCodeState
	d.states[event.EmptyCodeState] = State{ID: event.EmptyCodeState, Digest: digest, Snapshot: empty}
	return d
}

// Assign returns the identifier for the snapshot, creating one if this
// content has not been seen before. The empty snapshot always resolves to
// event.EmptyCodeState.
//
// Returns an INCONSISTENT_CODE_STATE error if an already-assigned identifier
// turns out to map to differing content (a digest collision or caller bug);
// the dataset must not be emitted in that case.
func (d *Dedup) Assign(s Snapshot) (int64, error) {
	if s == nil {
		s = Snapshot{}
	}
	digest := s.Digest()

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.byHash[digest]; ok {
		if !d.states[id].Snapshot.Equal(s) {
			return 0, event.NewInconsistentCodeStateError(id, digest)
		}
		return id, nil
	}

	id := d.next
	d.next++
	d.byHash[digest] = id
	d.states[id] = State{ID: id, Digest: digest, Snapshot: s}
	return id, nil
}

// Lookup returns the snapshot previously assigned to id.
func (d *Dedup) Lookup(id int64) (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[id]
	return st.Snapshot, ok
}

// Len returns the number of distinct non-empty states assigned so far.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states) - 1 // exclude the sentinel
}

// States returns all assigned states ordered by identifier, excluding the
// sentinel. The emitter materializes exactly these directories.
func (d *Dedup) States() []State {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]State, 0, len(d.states)-1)
	for id, st := range d.states {
		if id == event.EmptyCodeState {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
