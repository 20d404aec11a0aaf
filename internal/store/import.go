package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/progsnap2/internal/dataset"
)

// ImportDataset loads an emitted dataset into the store, replacing any
// previously imported copy. MainTable and the Link* tables are created
// from the dataset's own headers so optional and extension columns
// survive the round trip unchanged.
func ImportDataset(ctx context.Context, s *Store, ds *dataset.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if err := importMainTable(ctx, tx, ds); err != nil {
		return err
	}
	if err := importMetadata(ctx, tx, ds); err != nil {
		return err
	}
	if err := importCodeStates(ctx, tx, ds); err != nil {
		return err
	}
	if err := importLinkTables(ctx, tx, ds); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func importMainTable(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS MainTable"); err != nil {
		return fmt.Errorf("drop MainTable: %w", err)
	}

	ddl := fmt.Sprintf("CREATE TABLE MainTable (%s)", columnDefs(ds.Columns))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create MainTable: %w", err)
	}

	insert := insertStmt("MainTable", ds.Columns)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare MainTable insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(ds.Columns))
	for i, row := range ds.Rows {
		for j, col := range ds.Columns {
			args[j] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert MainTable row %d: %w", i, err)
		}
	}
	return nil
}

func importMetadata(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM DatasetMetadata"); err != nil {
		return fmt.Errorf("clear DatasetMetadata: %w", err)
	}
	for _, row := range ds.Metadata.Rows() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO DatasetMetadata (Property, Value) VALUES (?, ?)",
			row[0], row[1]); err != nil {
			return fmt.Errorf("insert metadata %s: %w", row[0], err)
		}
	}
	return nil
}

func importCodeStates(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM CodeState"); err != nil {
		return fmt.Errorf("clear CodeState: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO CodeState (CodeStateID, Filename, Contents) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare CodeState insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(ds.CodeStateFiles))
	for id := range ds.CodeStateFiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, name := range ds.CodeStateFiles[id] {
			contents, err := os.ReadFile(filepath.Join(ds.Dir, dataset.CodeStatesDir, id, filepath.FromSlash(name)))
			if err != nil {
				return fmt.Errorf("read code state %s/%s: %w", id, name, err)
			}
			if _, err := stmt.ExecContext(ctx, id, name, contents); err != nil {
				return fmt.Errorf("insert code state %s/%s: %w", id, name, err)
			}
		}
	}
	return nil
}

func importLinkTables(ctx context.Context, tx *sql.Tx, ds *dataset.Dataset) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM LinkTable"); err != nil {
		return fmt.Errorf("clear LinkTable: %w", err)
	}

	for _, link := range ds.LinkTables {
		table := "Link" + link.Name
		if !validTableName(link.Name) {
			return fmt.Errorf("link table %q: name must be alphanumeric", link.Name)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO LinkTable (Name) VALUES (?)", link.Name); err != nil {
			return fmt.Errorf("register link table %s: %w", link.Name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		if len(link.Columns) == 0 {
			continue
		}
		ddl := fmt.Sprintf("CREATE TABLE %q (%s)", table, columnDefs(link.Columns))
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}

		insert := insertStmt(table, link.Columns)
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", table, err)
		}
		for i, row := range link.Rows {
			args := make([]any, len(row))
			for j, v := range row {
				args[j] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				return fmt.Errorf("insert %s row %d: %w", table, i, err)
			}
		}
		stmt.Close()
	}
	return nil
}

// columnDefs builds a quoted TEXT column list from a CSV header.
func columnDefs(columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%q TEXT", col)
	}
	return strings.Join(defs, ", ")
}

// insertStmt builds an INSERT statement with one placeholder per column.
func insertStmt(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), placeholders)
}

// validTableName restricts link table names so they are safe to splice
// into DDL. Dataset link tables come from file names on disk.
func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
