package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/progsnap2/internal/event"
)

func defaultRules(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := Default()
	require.NoError(t, err)
	return rs
}

func TestDefaultRulesCompile(t *testing.T) {
	rs := defaultRules(t)
	assert.Greater(t, rs.Len(), 20, "The built-in table covers the BlockPy vocabulary")
}

func TestClassifyCodeEdit(t *testing.T) {
	rs := defaultRules(t)

	rule, err := rs.Classify("code", "set")
	require.NoError(t, err)
	assert.Equal(t, event.TypeFileEdit, rule.Type)
	assert.Equal(t, "GenericEdit", rule.Attrs["EditType"])
	assert.False(t, rule.Skip)
}

func TestClassifyEditorActions(t *testing.T) {
	rs := defaultRules(t)

	rule, err := rs.Classify("editor", "load")
	require.NoError(t, err)
	assert.Equal(t, event.TypeSessionStart, rule.Type)

	rule, err = rs.Classify("editor", "blocks")
	require.NoError(t, err)
	assert.Equal(t, event.EventType("X-View.Blocks"), rule.Type)

	rule, err = rs.Classify("editor", "run")
	require.NoError(t, err)
	assert.True(t, rule.Skip, "Editor run records duplicate the feedback stream")
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	rs := defaultRules(t)

	rule, err := rs.Classify("editor", "LOAD")
	require.NoError(t, err)
	assert.Equal(t, event.TypeSessionStart, rule.Type)
}

func TestClassifyFeedbackPrefixes(t *testing.T) {
	rs := defaultRules(t)

	rule, err := rs.Classify("feedback", "syntax|invalid syntax on line 3")
	require.NoError(t, err)
	assert.Equal(t, event.TypeCompileError, rule.Type)
	assert.Equal(t, "CompileMessageData", rule.BodyAttr)

	rule, err = rs.Classify("feedback", "runtime|NameError: name 'x' is not defined")
	require.NoError(t, err)
	assert.Equal(t, event.TypeRunProgram, rule.Type)
	assert.Equal(t, "Error", rule.Attrs["ExecutionResult"])

	rule, err = rs.Classify("feedback", "complete|Great work!")
	require.NoError(t, err)
	assert.Equal(t, event.TypeRunProgram, rule.Type)
	assert.Equal(t, "Success", rule.Attrs["ExecutionResult"])
}

func TestClassifyFeedbackFallback(t *testing.T) {
	rs := defaultRules(t)

	// Anything the specific feedback rules miss is an intervention
	rule, err := rs.Classify("feedback", "You should add a docstring")
	require.NoError(t, err)
	assert.Equal(t, event.TypeIntervention, rule.Type)
	assert.Equal(t, "Feedback", rule.Attrs["InterventionType"])
	assert.Equal(t, "InterventionMessage", rule.BodyAttr)
}

func TestClassifySkippedVocabularies(t *testing.T) {
	rs := defaultRules(t)

	for _, evt := range []string{"engine", "instructor", "trace"} {
		rule, err := rs.Classify(evt, "anything")
		require.NoError(t, err)
		assert.True(t, rule.Skip, "event %q should be skipped", evt)
	}
}

func TestClassifyUnknownRecordAborts(t *testing.T) {
	rs := defaultRules(t)

	_, err := rs.Classify("telemetry", "ping")
	require.Error(t, err)
	assert.True(t, event.IsMalformedInput(err), "Unclassifiable records must abort, not be guessed at")
}

func TestLoadRulesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	rulesFile := `
rules: [
	{event: "code", action: "set", type: "File.Edit"},
	{event: "noise", skip: true},
]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(rulesFile), 0o644))

	rs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())

	rule, err := rs.Classify("code", "set")
	require.NoError(t, err)
	assert.Equal(t, event.TypeFileEdit, rule.Type)
}

func TestLoadRejectsMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .cue files")
}

func TestLoadRejectsRuleWithoutType(t *testing.T) {
	dir := t.TempDir()
	rulesFile := `rules: [{event: "code", action: "set"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(rulesFile), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a type nor skip")
}

func TestLoadRejectsInvalidEventType(t *testing.T) {
	dir := t.TempDir()
	rulesFile := `rules: [{event: "code", action: "set", type: "Edited"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(rulesFile), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event type")
}

func TestRuleMatching(t *testing.T) {
	exact := Rule{Event: "editor", Action: "load"}
	assert.True(t, exact.matches("editor", "load"))
	assert.True(t, exact.matches("editor", "Load"))
	assert.False(t, exact.matches("editor", "loaded"))
	assert.False(t, exact.matches("code", "load"))

	prefix := Rule{Event: "feedback", ActionPrefix: "syntax|"}
	assert.True(t, prefix.matches("feedback", "syntax|bad"))
	assert.False(t, prefix.matches("feedback", "runtime|bad"))

	catchAll := Rule{Event: "feedback"}
	assert.True(t, catchAll.matches("feedback", "anything at all"))
}
