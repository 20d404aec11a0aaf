package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/progsnap2/internal/event"
)

func logRecord(t *testing.T, pool *Pool, r Record) *event.Event {
	t.Helper()
	e, err := pool.Log(r)
	require.NoError(t, err)
	return e
}

func TestReconcileMergesMatchingRecords(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp:     "2020-01-01T00:00:00",
		SubjectID:     "student-1",
		Type:          event.TypeSubmit,
		ToolInstances: "VPL 3.3.1",
		Source:        "submissions",
		CodeStateID:   1,
		HasCodeState:  true,
	})
	logRecord(t, pool, Record{
		Timestamp:     "2020-01-01T00:00:01",
		SubjectID:     "student-1",
		Type:          event.TypeSubmit,
		ToolInstances: "VPL 3.3.1",
		Source:        "events",
		Attributes:    map[string]string{"SessionID": "abc"},
	})

	require.NoError(t, pool.Reconcile(ReconcilePolicy{Window: 2}))

	events := pool.Events()
	require.Len(t, events, 1, "Records within the window merge into one event")
	assert.Equal(t, int64(1), events[0].CodeStateID)
	assert.Equal(t, "abc", events[0].Attr("SessionID"), "Absorbed record contributes its attributes")
	assert.Equal(t, "2020-01-01T00:00:00", events[0].RawTimestamp, "Earlier record keeps its identity")
}

func TestReconcileRespectsWindow(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:05", SubjectID: "s", Type: event.TypeSubmit, Source: "b",
	})

	require.NoError(t, pool.Reconcile(ReconcilePolicy{Window: 2}))
	assert.Equal(t, 2, pool.Len(), "Records outside the window stay distinct")
}

func TestReconcileNeverMergesSameSource(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
	})

	require.NoError(t, pool.Reconcile(ReconcilePolicy{Window: 2}))
	assert.Equal(t, 2, pool.Len(), "Two records from one source are two actions")
}

func TestReconcileRequiresMatchingJoinKey(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s1", Type: event.TypeSubmit, Source: "a",
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s2", Type: event.TypeSubmit, Source: "b",
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s1", Type: event.TypeRunProgram, Source: "b",
	})

	require.NoError(t, pool.Reconcile(ReconcilePolicy{Window: 2}))
	assert.Equal(t, 3, pool.Len(), "Different subjects or types never merge")
}

func TestReconcileCodeStateConflictAborts(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
		CodeStateID: 1, HasCodeState: true,
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "b",
		CodeStateID: 2, HasCodeState: true,
	})

	err := pool.Reconcile(ReconcilePolicy{Window: 2})
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err), "Conflicting code states abort reconciliation")
}

func TestReconcileAttributeConflictAborts(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
		Attributes: map[string]string{"Score": "1.0"},
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "b",
		Attributes: map[string]string{"Score": "0.5"},
	})

	err := pool.Reconcile(ReconcilePolicy{Window: 2})
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err), "Disagreeing attribute values abort reconciliation")
}

func TestReconcileAgreementIsNotConflict(t *testing.T) {
	pool := NewPool()

	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "a",
		Attributes: map[string]string{"Score": "1.0"},
	})
	logRecord(t, pool, Record{
		Timestamp: "2020-01-01T00:00:00", SubjectID: "s", Type: event.TypeSubmit, Source: "b",
		Attributes: map[string]string{"Score": "1.0"},
	})

	require.NoError(t, pool.Reconcile(ReconcilePolicy{Window: 2}))
	assert.Equal(t, 1, pool.Len())
}
