// Package blockpy converts BlockPy database dumps into the event pool.
//
// A dump is a zip or (gzipped) tar archive containing db/log.json: a flat
// list of interaction records {event, action, body, timestamp, user_id,
// assignment_id}. Records are classified into ProgSnap2 event types by a
// mapping.RuleSet; File.Edit records carry the program text in their body
// and receive a deduplicated code state.
package blockpy

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/progsnap2/internal/codestate"
	"github.com/roach88/progsnap2/internal/collect"
	"github.com/roach88/progsnap2/internal/event"
	"github.com/roach88/progsnap2/internal/mapping"
)

// DefaultToolInstance describes the BlockPy version the converter was
// built against.
const DefaultToolInstance = "BlockPy4"

// Source names used on pooled events.
const Source = "log"

// logPaths are the archive locations where the interaction log may live.
var logPaths = []string{"db/log.json", "log.json"}

// flexString decodes a JSON string or number into a string. BlockPy dumps
// are inconsistent about whether ids and timestamps are quoted.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// logRecord is one row of db/log.json.
type logRecord struct {
	Event        string     `json:"event"`
	Action       string     `json:"action"`
	Body         string     `json:"body"`
	Timestamp    flexString `json:"timestamp"`
	DateCreated  flexString `json:"date_created"`
	UserID       flexString `json:"user_id"`
	AssignmentID flexString `json:"assignment_id"`
}

// Converter feeds a BlockPy dump into the shared pool and deduplicator.
type Converter struct {
	Pool   *collect.Pool
	States *codestate.Dedup
	Rules  *mapping.RuleSet

	// Tool overrides DefaultToolInstance when non-empty.
	Tool string

	// MainFile names the single file of each snapshot.
	MainFile string
}

func (c *Converter) tool() string {
	if c.Tool != "" {
		return c.Tool
	}
	return DefaultToolInstance
}

func (c *Converter) mainFile() string {
	if c.MainFile != "" {
		return c.MainFile
	}
	return "__main__.py"
}

// TimestampToISO converts a BlockPy unix-seconds timestamp to ISO-8601
// in UTC.
func TimestampToISO(ts string) (string, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return "", fmt.Errorf("blockpy: timestamp %q is not unix seconds", ts)
	}
	return time.Unix(secs, 0).UTC().Format("2006-01-02T15:04:05"), nil
}

// Convert opens the dump, decodes the interaction log and pools one event
// per classifiable record. A record with no timestamp or no matching rule
// aborts the run; a malformed dataset must not be emitted as if valid.
func (c *Converter) Convert(dumpPath string) error {
	records, err := readLog(dumpPath)
	if err != nil {
		return err
	}

	for i, rec := range records {
		if err := c.convertRecord(rec); err != nil {
			return fmt.Errorf("blockpy: record %d: %w", i, err)
		}
	}
	return nil
}

func (c *Converter) convertRecord(rec logRecord) error {
	subject := string(rec.UserID)
	if rec.Timestamp == "" {
		return event.NewMalformedInputError(Source, subject, "record has no timestamp")
	}

	rule, err := c.Rules.Classify(rec.Event, rec.Action)
	if err != nil {
		return err
	}
	if rule.Skip {
		return nil
	}

	iso, err := TimestampToISO(string(rec.Timestamp))
	if err != nil {
		return event.NewMalformedInputError(Source, subject, err.Error())
	}

	attrs := make(map[string]string, len(rule.Attrs)+2)
	for name, value := range rule.Attrs {
		attrs[name] = value
	}
	if rule.BodyAttr != "" {
		attrs[rule.BodyAttr] = rec.Action + "|" + rec.Body
	}
	if rec.AssignmentID != "" {
		attrs["AssignmentID"] = string(rec.AssignmentID)
	}

	record := collect.Record{
		Timestamp:     iso,
		SubjectID:     subject,
		Type:          rule.Type,
		ToolInstances: c.tool(),
		Attributes:    attrs,
		Source:        Source,
	}

	// Edits carry the full program text; everything else inherits its
	// code state from the subject's preceding edit during sequencing.
	if rule.Type == event.TypeFileEdit {
		id, err := c.States.Assign(codestate.SingleFile(c.mainFile(), []byte(rec.Body)))
		if err != nil {
			return err
		}
		record.CodeStateID = id
		record.HasCodeState = true
	}

	_, err = c.Pool.Log(record)
	return err
}

// readLog locates and decodes the interaction log inside the dump.
func readLog(dumpPath string) ([]logRecord, error) {
	if archive, err := zip.OpenReader(dumpPath); err == nil {
		defer archive.Close()
		return readLogFromZip(archive)
	}
	return readLogFromTar(dumpPath)
}

func readLogFromZip(archive *zip.ReadCloser) ([]logRecord, error) {
	for _, path := range logPaths {
		rc, err := archive.Open(path)
		if err != nil {
			continue
		}
		defer rc.Close()
		return decodeLog(rc)
	}
	return nil, fmt.Errorf("blockpy: no log.json found in archive")
}

func readLogFromTar(dumpPath string) ([]logRecord, error) {
	f, err := os.Open(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("blockpy: open dump: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(dumpPath, ".gz") || strings.HasSuffix(dumpPath, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("blockpy: open dump: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blockpy: read dump: %w", err)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		for _, path := range logPaths {
			if name == path {
				return decodeLog(tr)
			}
		}
	}
	return nil, fmt.Errorf("blockpy: no log.json found in dump %s", dumpPath)
}

func decodeLog(r io.Reader) ([]logRecord, error) {
	var records []logRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("blockpy: decode log.json: %w", err)
	}
	return records, nil
}
