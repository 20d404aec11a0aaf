// Package vpl converts Moodle VPL activity exports into the event pool.
//
// A VPL export is a zip of per-student submission directories, each named
// by its timestamp, with an optional ".ceg" sibling directory holding the
// autograder outputs (compilation, execution, grade). An activity log CSV
// may accompany the archive; its rows describe the same actions as the
// archive and are merged by the pool's reconciliation pass.
package vpl

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/roach88/progsnap2/internal/codestate"
	"github.com/roach88/progsnap2/internal/collect"
	"github.com/roach88/progsnap2/internal/event"
)

// DefaultToolInstance describes the VPL version the converter was built
// against.
const DefaultToolInstance = "VPL 3.3.1"

// Source names used on pooled events.
const (
	SourceSubmissions = "submissions"
	SourceEvents      = "events"
)

// cegSuffix marks the autograder output directory that accompanies a
// submission ("compilation-execution-grade").
const cegSuffix = ".ceg"

// Converter feeds VPL logs into the shared pool and deduplicator.
type Converter struct {
	Pool   *collect.Pool
	States *codestate.Dedup

	// Tool overrides DefaultToolInstance when non-empty.
	Tool string
}

func (c *Converter) tool() string {
	if c.Tool != "" {
		return c.Tool
	}
	return DefaultToolInstance
}

// TimestampToISO converts a VPL-style timestamp to ISO-8601:
//
//	2018-10-31-12-02-25 → 2018-10-31T12:02:25
func TimestampToISO(ts string) (string, error) {
	if len(ts) != 19 {
		return "", fmt.Errorf("vpl: timestamp %q is not in YYYY-MM-DD-hh-mm-ss form", ts)
	}
	date := ts[:10]
	clock := strings.ReplaceAll(ts[11:], "-", ":")
	return date + "T" + clock, nil
}

// ConvertSubmissions walks the submissions archive, logging one Submit
// event per timestamped submission (with its deduplicated code state) and
// the subordinate autograder events from the ".ceg" directory.
func (c *Converter) ConvertSubmissions(zipPath string) error {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("vpl: open submissions archive: %w", err)
	}
	defer archive.Close()

	tree := buildTree(archive.File)

	for _, student := range sortedKeys(tree) {
		submissions := tree[student]
		for _, stamp := range sortedKeys(submissions) {
			if strings.HasSuffix(stamp, cegSuffix) {
				continue
			}
			submit, err := c.logSubmit(archive, student, stamp, submissions[stamp])
			if err != nil {
				return err
			}
			if ceg, ok := submissions[stamp+cegSuffix]; ok {
				if err := c.logCEG(archive, student, stamp, ceg, submit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// logSubmit deduplicates the submission's file tree and logs the Submit.
func (c *Converter) logSubmit(archive *zip.ReadCloser, student, stamp string, files map[string]string) (*event.Event, error) {
	snapshot := make(codestate.Snapshot, len(files))
	for name, full := range files {
		contents, err := readArchiveFile(archive, full)
		if err != nil {
			return nil, err
		}
		snapshot[name] = contents
	}

	id, err := c.States.Assign(snapshot)
	if err != nil {
		return nil, err
	}

	iso, err := TimestampToISO(stamp)
	if err != nil {
		return nil, event.NewMalformedInputError(SourceSubmissions, student, err.Error())
	}

	return c.Pool.Log(collect.Record{
		Timestamp:     iso,
		SubjectID:     student,
		Type:          event.TypeSubmit,
		ToolInstances: c.tool(),
		CodeStateID:   id,
		HasCodeState:  true,
		Source:        SourceSubmissions,
	})
}

// logCEG turns the autograder output directory into subordinate events.
// No execution output means the program never ran: a compile error, with
// whatever the compiler printed. Otherwise the execution output is logged
// as a program run. A grade file additionally yields a Feedback.Grade
// carrying the Score column.
func (c *Converter) logCEG(archive *zip.ReadCloser, student, stamp string, files map[string]string, parent *event.Event) error {
	iso, err := TimestampToISO(stamp)
	if err != nil {
		return event.NewMalformedInputError(SourceSubmissions, student, err.Error())
	}

	if execPath, ok := files["execution.txt"]; ok {
		message, err := readArchiveFile(archive, execPath)
		if err != nil {
			return err
		}
		_, err = c.Pool.Log(collect.Record{
			Timestamp:     iso,
			SubjectID:     student,
			Type:          event.TypeRunProgram,
			ToolInstances: c.tool(),
			Parent:        parent,
			Attributes: map[string]string{
				"InterventionType":    "Feedback",
				"InterventionMessage": string(message),
			},
			Source: SourceSubmissions,
		})
		if err != nil {
			return err
		}
	} else {
		var message []byte
		if compPath, ok := files["compilation.txt"]; ok {
			message, err = readArchiveFile(archive, compPath)
			if err != nil {
				return err
			}
		}
		_, err = c.Pool.Log(collect.Record{
			Timestamp:     iso,
			SubjectID:     student,
			Type:          event.TypeCompileError,
			ToolInstances: c.tool(),
			Parent:        parent,
			Attributes: map[string]string{
				"CompileMessageType": "Error",
				"CompileMessageData": string(message),
			},
			Source: SourceSubmissions,
		})
		if err != nil {
			return err
		}
	}

	if gradePath, ok := files["grade.txt"]; ok {
		grade, err := readArchiveFile(archive, gradePath)
		if err != nil {
			return err
		}
		score := strings.TrimSpace(string(grade))
		_, err = c.Pool.Log(collect.Record{
			Timestamp:     iso,
			SubjectID:     student,
			Type:          event.TypeFeedbackGrade,
			ToolInstances: c.tool(),
			Parent:        parent,
			Attributes: map[string]string{
				"InterventionType": "Grade",
				"Score":            score,
			},
			Source: SourceSubmissions,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// eventActions maps VPL activity-log actions to event types. Actions
// outside this table are a malformed input, not a guess.
var eventActions = map[string]event.EventType{
	"submitted": event.TypeSubmit,
	"evaluated": event.TypeRunTest,
	"saved":     "X-File.Save",
}

// ConvertEvents parses the activity log CSV (columns Time, SubjectID,
// Action). Rows describing submissions duplicate the archive's Submit
// events; Pool.Reconcile merges them afterwards.
func (c *Converter) ConvertEvents(csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("vpl: open events log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("vpl: read events log header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"Time", "SubjectID", "Action"} {
		if _, ok := cols[required]; !ok {
			return event.NewMalformedInputError(SourceEvents, "",
				fmt.Sprintf("events log is missing required column %s", required))
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("vpl: read events log: %w", err)
		}

		subject := row[cols["SubjectID"]]
		action := row[cols["Action"]]
		typ, ok := eventActions[action]
		if !ok {
			return event.NewMalformedInputError(SourceEvents, subject,
				fmt.Sprintf("unknown activity-log action %q", action))
		}

		iso, err := TimestampToISO(row[cols["Time"]])
		if err != nil {
			return event.NewMalformedInputError(SourceEvents, subject, err.Error())
		}

		if _, err := c.Pool.Log(collect.Record{
			Timestamp:     iso,
			SubjectID:     subject,
			Type:          typ,
			ToolInstances: c.tool(),
			Source:        SourceEvents,
		}); err != nil {
			return err
		}
	}
	return nil
}

// buildTree groups archive entries as student → submission stamp → file
// name → archive path. Submission directories are flat; deeper entries
// keep their remaining path as the file name.
func buildTree(files []*zip.File) map[string]map[string]map[string]string {
	tree := make(map[string]map[string]map[string]string)
	for _, f := range files {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		parts := strings.SplitN(f.Name, "/", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}
		student, stamp, name := parts[0], parts[1], parts[2]
		if tree[student] == nil {
			tree[student] = make(map[string]map[string]string)
		}
		if tree[student][stamp] == nil {
			tree[student][stamp] = make(map[string]string)
		}
		tree[student][stamp][name] = f.Name
	}
	return tree
}

func readArchiveFile(archive *zip.ReadCloser, path string) ([]byte, error) {
	rc, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vpl: open %s in archive: %w", path, err)
	}
	defer rc.Close()
	contents, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("vpl: read %s in archive: %w", path, err)
	}
	return contents, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
