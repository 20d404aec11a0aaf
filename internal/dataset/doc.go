// Package dataset reads and writes the ProgSnap2 on-disk contract.
//
// An emitted dataset is a directory tree:
//
//	DatasetMetadata.csv    Property,Value rows describing the dataset
//	MainTable.csv          one row per event
//	CodeStates/<id>/...    one directory per unique non-sentinel code state
//	LinkTables/<name>.csv  optional auxiliary tables
//
// Column order in MainTable.csv is not semantically significant per the
// format's own rules; the writer nevertheless emits a fixed, readable
// order (the well-known columns first, then the alphabetized union of the
// optional attribute columns) so that identical inputs produce
// byte-identical output.
package dataset
