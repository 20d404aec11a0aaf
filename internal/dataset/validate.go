package dataset

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/progsnap2/internal/event"
	"github.com/roach88/progsnap2/internal/sequence"
)

// Problem is one validation finding.
type Problem struct {
	Code    string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Code, p.Message)
}

// Problem codes reported by Validate.
const (
	ProblemMissingColumn    = "MISSING_COLUMN"
	ProblemBadValue         = "BAD_VALUE"
	ProblemOrderMismatch    = "ORDER_MISMATCH"
	ProblemMissingCodeState = "MISSING_CODE_STATE"
	ProblemEmptyCodeState   = "EMPTY_CODE_STATE"
	ProblemScope            = "SCOPE"
)

// requiredColumns must exist in every main table.
var requiredColumns = []string{"EventID", "SubjectID", "EventType", "CodeStateID"}

// Validate checks the on-disk contract:
//
//   - required main-table columns are present,
//   - EventID and Order (when present) are integers and agree with each
//     other,
//   - under Global scope, EventID ascends with row order,
//   - every non-sentinel CodeStateID referenced by a row corresponds to
//     exactly one non-empty materialized directory; the sentinel 0 has no
//     directory requirement,
//   - event types respect the open-enumeration policy.
//
// Under a None scope no ordering property is asserted: any row permutation
// is valid, so order checks are skipped.
func (d *Dataset) Validate() []Problem {
	var problems []Problem

	for _, col := range requiredColumns {
		if !d.Column(col) {
			problems = append(problems, Problem{ProblemMissingColumn,
				fmt.Sprintf("main table is missing required column %s", col)})
		}
	}
	if len(problems) > 0 {
		return problems
	}

	if d.Metadata.EventOrderScope == sequence.ScopeRestricted {
		for _, col := range d.Metadata.EventOrderScopeColumns {
			if !d.Column(col) {
				problems = append(problems, Problem{ProblemScope,
					fmt.Sprintf("declared scope column %s is not in the main table", col)})
			}
		}
	}

	checkOrder := d.Metadata.EventOrderScope != sequence.ScopeNone
	prevID := int64(-1)
	referenced := make(map[int64]bool)

	for i, row := range d.Rows {
		id, err := strconv.ParseInt(row["EventID"], 10, 64)
		if err != nil {
			problems = append(problems, Problem{ProblemBadValue,
				fmt.Sprintf("row %d: EventID %q is not an integer", i+1, row["EventID"])})
			continue
		}

		if orderStr, ok := row["Order"]; ok && d.Column("Order") {
			order, err := strconv.ParseInt(orderStr, 10, 64)
			if err != nil {
				problems = append(problems, Problem{ProblemBadValue,
					fmt.Sprintf("row %d: Order %q is not an integer", i+1, orderStr)})
			} else if order != id {
				problems = append(problems, Problem{ProblemOrderMismatch,
					fmt.Sprintf("row %d: Order %d does not match EventID %d", i+1, order, id)})
			}
		}

		if checkOrder && d.Metadata.EventOrderScope == sequence.ScopeGlobal && id <= prevID {
			problems = append(problems, Problem{ProblemOrderMismatch,
				fmt.Sprintf("row %d: EventID %d does not ascend (previous %d)", i+1, id, prevID)})
		}
		prevID = id

		if t := event.EventType(row["EventType"]); !t.Valid() {
			problems = append(problems, Problem{ProblemBadValue,
				fmt.Sprintf("row %d: event type %q is neither a core type nor an %s extension",
					i+1, t, event.ExtensionPrefix)})
		}

		csid, err := strconv.ParseInt(row["CodeStateID"], 10, 64)
		if err != nil {
			problems = append(problems, Problem{ProblemBadValue,
				fmt.Sprintf("row %d: CodeStateID %q is not an integer", i+1, row["CodeStateID"])})
			continue
		}
		if csid != event.EmptyCodeState {
			referenced[csid] = true
		}
	}

	ids := make([]int64, 0, len(referenced))
	for csid := range referenced {
		ids = append(ids, csid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, csid := range ids {
		files, ok := d.CodeStateFiles[strconv.FormatInt(csid, 10)]
		if !ok {
			problems = append(problems, Problem{ProblemMissingCodeState,
				fmt.Sprintf("code state %d is referenced but has no directory under %s", csid, CodeStatesDir)})
			continue
		}
		if len(files) == 0 {
			problems = append(problems, Problem{ProblemEmptyCodeState,
				fmt.Sprintf("code state %d directory is empty", csid)})
		}
	}

	return problems
}
