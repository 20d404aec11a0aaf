// Package store loads emitted ProgSnap2 datasets into SQLite for querying.
//
// The CSV artifacts are convenient to ship but slow to analyze; the store
// mirrors them into one database file:
//
//   - MainTable: one row per event, columns as found in MainTable.csv
//   - DatasetMetadata: the Property,Value pairs
//   - CodeState: (CodeStateID, Filename, Contents) per materialized file
//   - LinkTable: the names of the imported link tables, plus one
//     Link<name> table per auxiliary CSV
//
// MainTable and the Link* tables are created dynamically from the CSV
// headers, since the column set is dataset-dependent. Import is
// idempotent: re-importing a dataset replaces the previous tables.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during import
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
package store
