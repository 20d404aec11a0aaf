// Package mapping classifies raw source-log records into ProgSnap2 event
// types.
//
// The event-type taxonomy is an open enumeration, so the classification
// table is data, not code: rules are written in CUE and compiled at
// startup. A built-in ruleset covering the BlockPy log vocabulary is
// embedded; deployments with a different source vocabulary point the
// converter at a directory of .cue files instead.
//
// Rules are matched in declaration order; the first rule whose event and
// action patterns match wins. A record no rule matches is a malformed
// input: classification never guesses.
package mapping
