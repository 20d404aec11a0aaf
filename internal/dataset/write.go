package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/progsnap2/internal/codestate"
	"github.com/roach88/progsnap2/internal/event"
)

// File names of the on-disk contract.
const (
	MetadataFile  = "DatasetMetadata.csv"
	MainTableFile = "MainTable.csv"
	CodeStatesDir = "CodeStates"
	LinkTablesDir = "LinkTables"
)

// preferredColumns is the fixed readable prefix of the main table header.
// Column order carries no semantics in the format; this order only keeps
// output stable and humane.
var preferredColumns = []string{
	"EventID",
	"Order",
	"SubjectID",
	"EventType",
	"CodeStateID",
	"ServerTimestamp",
	"ToolInstances",
}

// LinkTable is an auxiliary table emitted under LinkTables/.
type LinkTable struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Write materializes the complete dataset under dir: metadata, main table,
// one directory per unique non-sentinel code state, and any link tables.
//
// Every event must already be sequenced, and every non-sentinel code-state
// id referenced by an event must have been assigned by states; Write fails
// rather than emit a dataset that violates the contract.
func Write(dir string, events []*event.Event, states *codestate.Dedup, meta Metadata, links []LinkTable) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	for _, e := range events {
		if !e.Sequenced() {
			return fmt.Errorf("dataset: event for subject %s has no assigned id; run the sequencer first", e.SubjectID)
		}
		if e.CodeStateID != event.EmptyCodeState {
			if _, ok := states.Lookup(e.CodeStateID); !ok {
				return fmt.Errorf("dataset: event %d references unassigned code state %d", e.EventID, e.CodeStateID)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dataset: create output dir: %w", err)
	}
	if err := writeMetadata(dir, meta); err != nil {
		return err
	}
	if err := writeMainTable(dir, events); err != nil {
		return err
	}
	if err := writeCodeStates(dir, states); err != nil {
		return err
	}
	if err := writeLinkTables(dir, links); err != nil {
		return err
	}
	return nil
}

func writeMetadata(dir string, meta Metadata) error {
	return writeCSV(filepath.Join(dir, MetadataFile), [][]string{{"Property", "Value"}}, meta.Rows())
}

func writeMainTable(dir string, events []*event.Event) error {
	header := mainTableHeader(events)

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, mainTableRow(header, e))
	}

	return writeCSV(filepath.Join(dir, MainTableFile), [][]string{header}, rows)
}

// mainTableHeader builds the header: the preferred prefix followed by the
// alphabetized union of every optional attribute any event carries.
func mainTableHeader(events []*event.Event) []string {
	optional := make(map[string]bool)
	for _, e := range events {
		for name := range e.Attributes {
			optional[name] = true
		}
	}

	header := make([]string, 0, len(preferredColumns)+len(optional))
	header = append(header, preferredColumns...)

	extra := make([]string, 0, len(optional))
	for name := range optional {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func mainTableRow(header []string, e *event.Event) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case "EventID":
			row[i] = strconv.FormatInt(e.EventID, 10)
		case "Order":
			row[i] = strconv.FormatInt(e.Order, 10)
		case "SubjectID":
			row[i] = e.SubjectID
		case "EventType":
			row[i] = string(e.Type)
		case "CodeStateID":
			row[i] = strconv.FormatInt(e.CodeStateID, 10)
		case "ServerTimestamp":
			row[i] = e.RawTimestamp
		case "ToolInstances":
			row[i] = e.ToolInstances
		default:
			row[i] = e.Attr(col) // missing attributes stay ""
		}
	}
	return row
}

// writeCodeStates materializes one directory per unique non-sentinel state.
// A pre-existing CodeStates directory is moved aside under a unique name
// before removal, so a crash mid-delete never leaves a half-valid tree in
// place.
func writeCodeStates(dir string, states *codestate.Dedup) error {
	root := filepath.Join(dir, CodeStatesDir)
	if _, err := os.Stat(root); err == nil {
		stale := filepath.Join(dir, CodeStatesDir+"."+uuid.NewString())
		if err := os.Rename(root, stale); err != nil {
			return fmt.Errorf("dataset: move aside stale code states: %w", err)
		}
		if err := os.RemoveAll(stale); err != nil {
			return fmt.Errorf("dataset: remove stale code states: %w", err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("dataset: create %s: %w", CodeStatesDir, err)
	}

	for _, st := range states.States() {
		stateDir := filepath.Join(root, strconv.FormatInt(st.ID, 10))
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return fmt.Errorf("dataset: create code state %d: %w", st.ID, err)
		}
		paths := make([]string, 0, len(st.Snapshot))
		for path := range st.Snapshot {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			target := filepath.Join(stateDir, filepath.FromSlash(path))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("dataset: create code state %d dirs: %w", st.ID, err)
			}
			if err := os.WriteFile(target, st.Snapshot[path], 0o644); err != nil {
				return fmt.Errorf("dataset: write code state %d file %s: %w", st.ID, path, err)
			}
		}
	}
	return nil
}

func writeLinkTables(dir string, links []LinkTable) error {
	if len(links) == 0 {
		return nil
	}
	root := filepath.Join(dir, LinkTablesDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("dataset: create %s: %w", LinkTablesDir, err)
	}
	for _, link := range links {
		path := filepath.Join(root, link.Name+".csv")
		if err := writeCSV(path, [][]string{link.Columns}, link.Rows); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(header); err != nil {
		return fmt.Errorf("dataset: write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("dataset: write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("dataset: flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
