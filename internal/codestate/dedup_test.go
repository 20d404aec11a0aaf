package codestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/progsnap2/internal/event"
)

func TestDedupAssignsSequentialIDs(t *testing.T) {
	d := NewDedup()

	id1, err := d.Assign(Snapshot{"main.py": []byte("a")})
	require.NoError(t, err)
	id2, err := d.Assign(Snapshot{"main.py": []byte("b")})
	require.NoError(t, err)
	id3, err := d.Assign(Snapshot{"main.py": []byte("c")})
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	assert.Equal(t, int64(3), id3)
	assert.Equal(t, 3, d.Len())
}

func TestDedupIdenticalContentSharesID(t *testing.T) {
	d := NewDedup()

	id1, err := d.Assign(Snapshot{"main.py": []byte("x = 1\n")})
	require.NoError(t, err)

	// Same content, separate map instance
	id2, err := d.Assign(Snapshot{"main.py": []byte("x = 1\n")})
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "Identical contents must share one identifier")
	assert.Equal(t, 1, d.Len())
}

func TestDedupEmptySnapshotIsSentinel(t *testing.T) {
	d := NewDedup()

	id, err := d.Assign(Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, event.EmptyCodeState, id)

	id, err = d.Assign(nil)
	require.NoError(t, err)
	assert.Equal(t, event.EmptyCodeState, id, "Nil snapshot resolves to the sentinel")

	// The sentinel never counts as an assigned state
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.States())
}

func TestDedupObservationOrderDetermines(t *testing.T) {
	// Two runs over the same inputs in the same relative order must
	// assign the same identifiers.
	inputs := []Snapshot{
		{"main.py": []byte("one")},
		{"main.py": []byte("two")},
		{"main.py": []byte("one")}, // repeat
		{"main.py": []byte("three")},
	}

	run := func() []int64 {
		d := NewDedup()
		var ids []int64
		for _, s := range inputs {
			id, err := d.Assign(s)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		return ids
	}

	assert.Equal(t, run(), run(), "Identifier assignment must be reproducible")
	assert.Equal(t, []int64{1, 2, 1, 3}, run())
}

func TestDedupLookup(t *testing.T) {
	d := NewDedup()
	snap := Snapshot{"main.py": []byte("x")}

	id, err := d.Assign(snap)
	require.NoError(t, err)

	got, ok := d.Lookup(id)
	require.True(t, ok)
	assert.True(t, snap.Equal(got))

	_, ok = d.Lookup(999)
	assert.False(t, ok)

	sentinel, ok := d.Lookup(event.EmptyCodeState)
	require.True(t, ok)
	assert.True(t, sentinel.Empty())
}

func TestDedupStatesOrderedByID(t *testing.T) {
	d := NewDedup()
	for _, contents := range []string{"c", "a", "b"} {
		_, err := d.Assign(Snapshot{"main.py": []byte(contents)})
		require.NoError(t, err)
	}

	states := d.States()
	require.Len(t, states, 3)
	assert.Equal(t, int64(1), states[0].ID)
	assert.Equal(t, int64(2), states[1].ID)
	assert.Equal(t, int64(3), states[2].ID)
	assert.Equal(t, []byte("c"), states[0].Snapshot["main.py"], "First observed content keeps the first id")
}
