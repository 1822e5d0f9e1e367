package plugin

import (
	"fmt"
	"math"
	"strings"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// WorkflowTable names the store table listing the stages to run.
const WorkflowTable = "Workflow"

// Step is one row of the workflow table.
type Step struct {
	Name     string
	Position *int
	Type     string
}

// WorkflowFromStore reads the workflow table in declaration order. Rows of
// Type "function" describe internal cash-flow steps and are skipped.
func WorkflowFromStore(s *params.Store) ([]Step, error) {
	if !s.HasTable(WorkflowTable) {
		return nil, fmt.Errorf("no %s table in configuration", WorkflowTable)
	}
	r := resolve.New(s, nil)

	var steps []Step
	for _, row := range s.Rows(WorkflowTable) {
		step := Step{Name: row}

		typ := params.P(WorkflowTable, row, "Type")
		if s.Has(typ) {
			t, err := r.Text(typ)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", row, err)
			}
			step.Type = strings.ToLower(strings.TrimSpace(t))
		}
		if step.Type == "function" {
			continue
		}

		pos := params.P(WorkflowTable, row, "Position")
		if s.Has(pos) {
			f, err := r.Number(pos)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", row, err)
			}
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("workflow %s: position %v is not an integer", row, f)
			}
			n := int(f)
			step.Position = &n
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%s table lists no plugins", WorkflowTable)
	}
	return steps, nil
}
