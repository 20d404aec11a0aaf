// Package sequence turns the unordered event pool into a totally ordered
// table with final identifiers.
//
// The sort is stable: timestamp is the primary key, identical timestamps
// are tie-broken by a documented event-type rank (a submission sorts before
// the compile and run results it triggered), and remaining ties keep
// arrival order.
//
// EventID and Order are assigned from sort position only after the full
// sort completes, so the two can never disagree. Ordering is an assignment,
// not a measurement: order values are never derived from wall-clock epoch
// values. Columns that referenced events before the sort (ParentEventID)
// are populated in a second pass from the provisional-to-final id mapping.
package sequence
