package mapping

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/progsnap2/internal/event"
)

//go:embed rules.cue
var defaultRulesCUE []byte

// Rule maps one source-log (event, action) shape to a ProgSnap2 event type.
type Rule struct {
	// Event matches the record's event field exactly. Required.
	Event string `json:"event"`

	// Action matches the record's action field case-insensitively.
	// Empty means any action (unless ActionPrefix is set).
	Action string `json:"action"`

	// ActionPrefix matches a lowercase prefix of the action field.
	ActionPrefix string `json:"actionPrefix"`

	// Type is the event type to emit. Empty only for skip rules.
	Type event.EventType `json:"type"`

	// Attrs are fixed optional columns attached to the emitted event.
	Attrs map[string]string `json:"attrs"`

	// BodyAttr names an optional column that receives the record's
	// "action|body" text verbatim (error output, feedback messages).
	BodyAttr string `json:"bodyAttr"`

	// Skip drops the matched record without emitting an event.
	Skip bool `json:"skip"`
}

// matches reports whether the rule applies to the record.
func (r Rule) matches(evt, action string) bool {
	if r.Event != evt {
		return false
	}
	lower := strings.ToLower(action)
	if r.Action != "" {
		return lower == strings.ToLower(r.Action)
	}
	if r.ActionPrefix != "" {
		return strings.HasPrefix(lower, r.ActionPrefix)
	}
	return true
}

// RuleSet is an ordered classification table.
type RuleSet struct {
	rules []Rule
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Classify returns the first rule matching the record, or a
// MALFORMED_INPUT_EVENT error when no rule applies — an unclassifiable
// record must abort the run rather than be guessed at.
func (rs *RuleSet) Classify(evt, action string) (Rule, error) {
	for _, r := range rs.rules {
		if r.matches(evt, action) {
			return r, nil
		}
	}
	return Rule{}, event.NewMalformedInputError("", "",
		fmt.Sprintf("no mapping rule classifies record (event=%q, action=%q)", evt, action))
}

// Default compiles the embedded ruleset.
func Default() (*RuleSet, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(defaultRulesCUE, cue.Filename("rules.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("mapping: compile built-in rules: %w", err)
	}
	return decodeRules(value)
}

// Load compiles every .cue file in dir into a ruleset, replacing the
// built-in table. Validation is structural: each rule must carry an event
// pattern and either a type or skip.
func Load(dir string) (*RuleSet, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("mapping: rules directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mapping: not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("mapping: scan %s: %w", dir, err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("mapping: no .cue files found in %s", dir)
	}

	// Name the files explicitly: rule files need no package clause, and
	// orphaned CUE files only load when listed.
	args := make([]string, 0, len(cueFiles))
	for _, f := range cueFiles {
		rel, relErr := filepath.Rel(dir, f)
		if relErr != nil {
			return nil, fmt.Errorf("mapping: %w", relErr)
		}
		args = append(args, rel)
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("mapping: no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("mapping: load %s: %w", dir, inst.Err)
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("mapping: build %s: %w", dir, err)
	}
	return decodeRules(value)
}

func decodeRules(value cue.Value) (*RuleSet, error) {
	rulesVal := value.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, fmt.Errorf("mapping: no rules list found")
	}

	var rules []Rule
	if err := rulesVal.Decode(&rules); err != nil {
		return nil, fmt.Errorf("mapping: decode rules: %w", err)
	}

	for i, r := range rules {
		if r.Event == "" {
			return nil, fmt.Errorf("mapping: rule %d has no event pattern", i)
		}
		if !r.Skip && r.Type == "" {
			return nil, fmt.Errorf("mapping: rule %d (event=%q) has neither a type nor skip", i, r.Event)
		}
		if !r.Skip && !r.Type.Valid() {
			return nil, fmt.Errorf("mapping: rule %d emits invalid event type %q (core type or %s extension required)",
				i, r.Type, event.ExtensionPrefix)
		}
	}

	return &RuleSet{rules: rules}, nil
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
