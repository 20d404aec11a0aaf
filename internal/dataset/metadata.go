package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/progsnap2/internal/sequence"
)

// Metadata file properties, as written to DatasetMetadata.csv.
const (
	PropVersion                   = "Version"
	PropIsEventOrderingConsistent = "IsEventOrderingConsistent"
	PropEventOrderScope           = "EventOrderScope"
	PropEventOrderScopeColumns    = "EventOrderScopeColumns"
	PropCodeStateRepresentation   = "CodeStateRepresentation"
)

// RepresentationDirectory is the only code-state representation mode the
// toolkit emits: one directory of files per unique code state.
const RepresentationDirectory = "Directory"

// CurrentVersion is the ProgSnap2 standard version the writer targets.
const CurrentVersion = 6

// Metadata is the fixed-schema record describing global dataset properties.
// Created once per conversion and read-only afterward.
type Metadata struct {
	Version                   int
	IsEventOrderingConsistent bool
	EventOrderScope           sequence.Scope
	EventOrderScopeColumns    []string
	CodeStateRepresentation   string
}

// DefaultMetadata returns the metadata the converters emit unless
// configuration overrides it: globally ordered, directory code states.
func DefaultMetadata() Metadata {
	return Metadata{
		Version:                   CurrentVersion,
		IsEventOrderingConsistent: true,
		EventOrderScope:           sequence.ScopeGlobal,
		CodeStateRepresentation:   RepresentationDirectory,
	}
}

// Validate checks the metadata record for internal consistency.
func (m Metadata) Validate() error {
	if m.Version <= 0 {
		return fmt.Errorf("metadata: version must be a positive integer, got %d", m.Version)
	}
	if !sequence.ValidScopes[m.EventOrderScope] {
		return fmt.Errorf("metadata: unknown event order scope %q", m.EventOrderScope)
	}
	if m.EventOrderScope == sequence.ScopeRestricted && len(m.EventOrderScopeColumns) == 0 {
		return fmt.Errorf("metadata: %s scope requires scope columns", sequence.ScopeRestricted)
	}
	if m.EventOrderScope != sequence.ScopeRestricted && len(m.EventOrderScopeColumns) > 0 {
		return fmt.Errorf("metadata: scope columns are only allowed with %s scope", sequence.ScopeRestricted)
	}
	if m.CodeStateRepresentation != RepresentationDirectory {
		return fmt.Errorf("metadata: unsupported code state representation %q", m.CodeStateRepresentation)
	}
	return nil
}

// Rows returns the metadata as Property,Value rows in emission order.
func (m Metadata) Rows() [][]string {
	return [][]string{
		{PropVersion, strconv.Itoa(m.Version)},
		{PropIsEventOrderingConsistent, strconv.FormatBool(m.IsEventOrderingConsistent)},
		{PropEventOrderScope, string(m.EventOrderScope)},
		{PropEventOrderScopeColumns, strings.Join(m.EventOrderScopeColumns, ";")},
		{PropCodeStateRepresentation, m.CodeStateRepresentation},
	}
}

// parseMetadata rebuilds a Metadata record from Property,Value rows.
func parseMetadata(rows [][]string) (Metadata, error) {
	var m Metadata
	seen := make(map[string]bool)

	for _, row := range rows {
		if len(row) != 2 {
			return m, fmt.Errorf("metadata: malformed row %v", row)
		}
		prop, value := row[0], row[1]
		if seen[prop] {
			return m, fmt.Errorf("metadata: duplicate property %s", prop)
		}
		seen[prop] = true

		switch prop {
		case PropVersion:
			v, err := strconv.Atoi(value)
			if err != nil {
				return m, fmt.Errorf("metadata: %s is not an integer: %q", prop, value)
			}
			m.Version = v
		case PropIsEventOrderingConsistent:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return m, fmt.Errorf("metadata: %s is not a boolean: %q", prop, value)
			}
			m.IsEventOrderingConsistent = b
		case PropEventOrderScope:
			m.EventOrderScope = sequence.Scope(value)
		case PropEventOrderScopeColumns:
			if value != "" {
				m.EventOrderScopeColumns = strings.Split(value, ";")
			}
		case PropCodeStateRepresentation:
			m.CodeStateRepresentation = value
		default:
			// Unrecognized properties are preserved by readers of the
			// format; the toolkit only checks the ones it knows.
		}
	}

	for _, required := range []string{PropVersion, PropEventOrderScope, PropCodeStateRepresentation} {
		if !seen[required] {
			return m, fmt.Errorf("metadata: missing required property %s", required)
		}
	}

	return m, m.Validate()
}
