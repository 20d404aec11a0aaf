package dataset

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dataset is an emitted dataset read back from disk.
type Dataset struct {
	Dir      string
	Metadata Metadata

	// Columns is the main table header as found on disk.
	Columns []string

	// Rows holds the main table rows, column name to value.
	Rows []map[string]string

	// CodeStateFiles maps each materialized code-state id (as the directory
	// name) to its file paths relative to the state directory.
	CodeStateFiles map[string][]string

	// LinkTables lists the auxiliary tables found under LinkTables/.
	LinkTables []LinkTable
}

// Read parses a dataset directory: metadata, main table, the set of
// materialized code states and any link tables.
func Read(dir string) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset: %s is not a directory", dir)
	}

	ds := &Dataset{Dir: dir}

	metaRows, err := readCSV(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	if len(metaRows) == 0 || len(metaRows[0]) != 2 || metaRows[0][0] != "Property" || metaRows[0][1] != "Value" {
		return nil, fmt.Errorf("dataset: %s has no Property,Value header", MetadataFile)
	}
	ds.Metadata, err = parseMetadata(metaRows[1:])
	if err != nil {
		return nil, err
	}

	mainRows, err := readCSV(filepath.Join(dir, MainTableFile))
	if err != nil {
		return nil, err
	}
	if len(mainRows) == 0 {
		return nil, fmt.Errorf("dataset: %s has no header", MainTableFile)
	}
	ds.Columns = mainRows[0]
	for i, row := range mainRows[1:] {
		if len(row) != len(ds.Columns) {
			return nil, fmt.Errorf("dataset: %s row %d has %d values, header has %d columns",
				MainTableFile, i+1, len(row), len(ds.Columns))
		}
		m := make(map[string]string, len(ds.Columns))
		for j, col := range ds.Columns {
			m[col] = row[j]
		}
		ds.Rows = append(ds.Rows, m)
	}

	ds.CodeStateFiles, err = readCodeStates(filepath.Join(dir, CodeStatesDir))
	if err != nil {
		return nil, err
	}

	ds.LinkTables, err = readLinkTables(filepath.Join(dir, LinkTablesDir))
	if err != nil {
		return nil, err
	}

	return ds, nil
}

// Column reports whether the main table carries the named column.
func (d *Dataset) Column(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func readCodeStates(root string) (map[string][]string, error) {
	states := make(map[string][]string)

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return states, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", CodeStatesDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stateDir := filepath.Join(root, entry.Name())
		var files []string
		err := filepath.WalkDir(stateDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				rel, relErr := filepath.Rel(stateDir, path)
				if relErr != nil {
					return relErr
				}
				files = append(files, filepath.ToSlash(rel))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("dataset: walk code state %s: %w", entry.Name(), err)
		}
		sort.Strings(files)
		states[entry.Name()] = files
	}
	return states, nil
}

func readLinkTables(root string) ([]LinkTable, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", LinkTablesDir, err)
	}

	var links []LinkTable
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		rows, err := readCSV(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		link := LinkTable{Name: strings.TrimSuffix(entry.Name(), ".csv")}
		if len(rows) > 0 {
			link.Columns = rows[0]
			link.Rows = rows[1:]
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })
	return links, nil
}
