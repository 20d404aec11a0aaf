// Package collect gathers raw events from heterogeneous source logs into a
// single unordered pool of normalized records.
//
// The pool validates each record at entry: a missing or unparseable
// timestamp or subject is rejected with a MALFORMED_INPUT_EVENT error,
// never silently dropped.
//
// When the same underlying activity is described by several independent
// logs (a submission archive and a tool event log), Reconcile merges the
// duplicate records into one. The join key is (subject, tool instance,
// event type, timestamp within a configurable window). Conflict policy:
// the record carrying a code-state reference is authoritative for it, other
// records contribute their attributes, and two sources disagreeing on the
// same scalar attribute abort the run.
package collect
