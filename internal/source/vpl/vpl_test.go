package vpl

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/progsnap2/internal/codestate"
	"github.com/roach88/progsnap2/internal/collect"
	"github.com/roach88/progsnap2/internal/event"
)

// writeZip builds a zip fixture from path → contents.
func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "submissions.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, contents := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func newConverter() *Converter {
	return &Converter{
		Pool:   collect.NewPool(),
		States: codestate.NewDedup(),
	}
}

func TestTimestampToISO(t *testing.T) {
	iso, err := TimestampToISO("2018-10-31-12-02-25")
	require.NoError(t, err)
	assert.Equal(t, "2018-10-31T12:02:25", iso)

	_, err = TimestampToISO("2018-10-31")
	assert.Error(t, err)

	_, err = TimestampToISO("2018-10-31 12:02:25.000")
	assert.Error(t, err)
}

func TestConvertSubmissionsLogsSubmitWithCodeState(t *testing.T) {
	c := newConverter()
	path := writeZip(t, map[string]string{
		"alice/2018-10-31-12-02-25/main.c":   "int main() { return 0; }\n",
		"alice/2018-10-31-12-02-25/helper.h": "#define N 3\n",
	})

	require.NoError(t, c.ConvertSubmissions(path))

	events := c.Pool.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].SubjectID)
	assert.Equal(t, event.TypeSubmit, events[0].Type)
	assert.Equal(t, "2018-10-31T12:02:25", events[0].RawTimestamp)
	assert.Equal(t, DefaultToolInstance, events[0].ToolInstances)

	snap, ok := c.States.Lookup(events[0].CodeStateID)
	require.True(t, ok)
	assert.Equal(t, []string{"helper.h", "main.c"}, snap.Paths())
}

func TestConvertSubmissionsExecutedCEG(t *testing.T) {
	c := newConverter()
	path := writeZip(t, map[string]string{
		"alice/2018-10-31-12-02-25/main.c":              "int main() {}\n",
		"alice/2018-10-31-12-02-25.ceg/execution.txt":   "All tests passed\n",
		"alice/2018-10-31-12-02-25.ceg/grade.txt":       "9.5\n",
		"alice/2018-10-31-12-02-25.ceg/compilation.txt": "",
	})

	require.NoError(t, c.ConvertSubmissions(path))

	events := c.Pool.Events()
	require.Len(t, events, 3)

	submit, run, grade := events[0], events[1], events[2]
	assert.Equal(t, event.TypeSubmit, submit.Type)
	assert.Equal(t, event.TypeRunProgram, run.Type)
	assert.Equal(t, "All tests passed\n", run.Attr("InterventionMessage"))
	assert.Equal(t, submit.ProvisionalID, run.ParentProvisionalID, "Autograder events link to their submission")
	assert.Equal(t, event.TypeFeedbackGrade, grade.Type)
	assert.Equal(t, "9.5", grade.Attr("Score"), "Grades are whitespace-trimmed")
	assert.Equal(t, submit.ProvisionalID, grade.ParentProvisionalID)
}

func TestConvertSubmissionsCompileErrorCEG(t *testing.T) {
	// No execution output means the program never ran
	c := newConverter()
	path := writeZip(t, map[string]string{
		"alice/2018-10-31-12-02-25/main.c":              "int main( {\n",
		"alice/2018-10-31-12-02-25.ceg/compilation.txt": "main.c:1: error: expected declaration\n",
	})

	require.NoError(t, c.ConvertSubmissions(path))

	events := c.Pool.Events()
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeCompileError, events[1].Type)
	assert.Equal(t, "main.c:1: error: expected declaration\n", events[1].Attr("CompileMessageData"))
}

func TestConvertSubmissionsDeterministicOrder(t *testing.T) {
	// Students and stamps are walked in sorted order, so provisional
	// numbering is reproducible regardless of zip entry order.
	files := map[string]string{
		"bob/2018-10-31-13-00-00/main.c":   "b2",
		"alice/2018-10-31-12-00-00/main.c": "a1",
		"bob/2018-10-31-12-30-00/main.c":   "b1",
	}

	run := func() []string {
		c := newConverter()
		require.NoError(t, c.ConvertSubmissions(writeZip(t, files)))
		var order []string
		for _, e := range c.Pool.Events() {
			order = append(order, e.SubjectID+"@"+e.RawTimestamp)
		}
		return order
	}

	expected := []string{
		"alice@2018-10-31T12:00:00",
		"bob@2018-10-31T12:30:00",
		"bob@2018-10-31T13:00:00",
	}
	assert.Equal(t, expected, run())
	assert.Equal(t, expected, run())
}

func TestConvertSubmissionsDeduplicatesResubmission(t *testing.T) {
	c := newConverter()
	path := writeZip(t, map[string]string{
		"alice/2018-10-31-12-00-00/main.c": "same\n",
		"alice/2018-10-31-12-30-00/main.c": "same\n",
	})

	require.NoError(t, c.ConvertSubmissions(path))

	events := c.Pool.Events()
	require.Len(t, events, 2)
	assert.Equal(t, events[0].CodeStateID, events[1].CodeStateID)
	assert.Equal(t, 1, c.States.Len())
}

func TestConvertSubmissionsBadStampAborts(t *testing.T) {
	c := newConverter()
	path := writeZip(t, map[string]string{
		"alice/yesterday/main.c": "x",
	})

	err := c.ConvertSubmissions(path)
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err))
}

func TestConvertEvents(t *testing.T) {
	c := newConverter()
	csvPath := filepath.Join(t.TempDir(), "log.csv")
	log := "Time,SubjectID,Action\n" +
		"2018-10-31-12-02-25,alice,submitted\n" +
		"2018-10-31-12-03-00,alice,evaluated\n" +
		"2018-10-31-12-04-00,bob,saved\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(log), 0o644))

	require.NoError(t, c.ConvertEvents(csvPath))

	events := c.Pool.Events()
	require.Len(t, events, 3)
	assert.Equal(t, event.TypeSubmit, events[0].Type)
	assert.Equal(t, event.TypeRunTest, events[1].Type)
	assert.Equal(t, event.EventType("X-File.Save"), events[2].Type)
	assert.Equal(t, SourceEvents, events[0].Source)
}

func TestConvertEventsMissingColumnAborts(t *testing.T) {
	c := newConverter()
	csvPath := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Time,Action\n"), 0o644))

	err := c.ConvertEvents(csvPath)
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err))
}

func TestConvertEventsUnknownActionAborts(t *testing.T) {
	c := newConverter()
	csvPath := filepath.Join(t.TempDir(), "log.csv")
	log := "Time,SubjectID,Action\n2018-10-31-12-02-25,alice,teleported\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(log), 0o644))

	err := c.ConvertEvents(csvPath)
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err))
}

func TestConvertEventsReconcileWithSubmissions(t *testing.T) {
	c := newConverter()
	zipPath := writeZip(t, map[string]string{
		"alice/2018-10-31-12-02-25/main.c": "int main() {}\n",
	})
	require.NoError(t, c.ConvertSubmissions(zipPath))

	csvPath := filepath.Join(t.TempDir(), "log.csv")
	log := "Time,SubjectID,Action\n2018-10-31-12-02-26,alice,submitted\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(log), 0o644))
	require.NoError(t, c.ConvertEvents(csvPath))

	require.Equal(t, 2, c.Pool.Len())
	require.NoError(t, c.Pool.Reconcile(collect.ReconcilePolicy{Window: 2}))

	events := c.Pool.Events()
	require.Len(t, events, 1, "The activity-log submission merges into the archive's")
	assert.Equal(t, event.TypeSubmit, events[0].Type)
	assert.NotEqual(t, event.UnresolvedCodeState, events[0].CodeStateID)
}

func TestToolOverride(t *testing.T) {
	c := newConverter()
	c.Tool = "VPL 4.0"
	path := writeZip(t, map[string]string{
		"alice/2018-10-31-12-02-25/main.c": "x",
	})

	require.NoError(t, c.ConvertSubmissions(path))
	assert.Equal(t, "VPL 4.0", c.Pool.Events()[0].ToolInstances)
}
