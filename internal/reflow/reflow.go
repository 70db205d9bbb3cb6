// Package reflow implements the driver: the dependency-ordered worklist
// loop that places every work order on its machine, calling into
// calendar, resolver and constraint to do so, and produces the final
// ReflowResult.
//
// Reflow is a pure function of its inputs. It holds no package-level
// mutable state; every collection it needs (the schedule, the dependency
// lookup, the change log) is a local of the call.
package reflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dsi-mfg/reflow/internal/calendar"
	"github.com/dsi-mfg/reflow/internal/constraint"
	"github.com/dsi-mfg/reflow/internal/model"
	"github.com/dsi-mfg/reflow/internal/resolver"
)

// maxWorklistMultiplier bounds the worklist loop at N*100 iterations,
// where N is the input size (spec.md §4.4).
const maxWorklistMultiplier = 100

// UnknownMachineError is fatal: a work order references a machine id that
// is not among the supplied work centers.
type UnknownMachineError struct {
	WorkOrderID  string
	WorkCenterID string
}

func (e *UnknownMachineError) Error() string {
	return fmt.Sprintf("reflow: work order %s references unknown machine %s", e.WorkOrderID, e.WorkCenterID)
}

// UnresolvedDependencyError is fatal: a work order depends on an id that
// does not appear anywhere in the input.
type UnresolvedDependencyError struct {
	WorkOrderID  string
	DependencyID string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("reflow: work order %s depends on unknown work order %s", e.WorkOrderID, e.DependencyID)
}

// worklistItem carries a work order through the queue. The queue is a
// plain slice; front-reinsertion (pushing unplaced deps ahead of the
// order waiting on them) is a slice splice, not a separate data structure.
type worklistItem = model.WorkOrder

// Reflow places every work order on its machine so that the final
// schedule satisfies every constraint in SPEC_FULL.md §3, returning an
// audit log of what moved and why. The returned error is reserved for the
// fatal classes of SPEC_FULL.md §7 (unknown machine, unresolvable
// dependency id, and bound-exceeded conditions internal to the calendar
// or conflict resolver); soft failures are reported inside the result
// with Success=false.
func Reflow(ctx context.Context, workCenters []model.WorkCenter, workOrders []model.WorkOrder) (model.ReflowResult, error) {
	runID := uuid.New()

	if len(workOrders) == 0 {
		return model.ReflowResult{
			RunID:             runID,
			Success:           false,
			UpdatedWorkOrders: model.Schedule{},
			Explanation:       "no work orders",
		}, nil
	}

	if cycleErrs := constraint.DetectCycles(workOrders); len(cycleErrs) > 0 {
		return model.ReflowResult{
			RunID:             runID,
			Success:           false,
			UpdatedWorkOrders: model.Schedule{},
			Explanation:       strings.Join(cycleErrs, "; "),
			Errors:            cycleErrs,
		}, nil
	}

	wcByID := make(map[string]model.WorkCenter, len(workCenters))
	for _, wc := range workCenters {
		wcByID[wc.ID] = wc
	}
	origByID := make(map[string]model.WorkOrder, len(workOrders))
	for _, o := range workOrders {
		origByID[o.ID] = o
	}

	schedule := model.Schedule{}
	placedIndex := make(map[string]model.WorkOrder, len(workOrders))
	placedSet := make(map[string]bool, len(workOrders))
	var changes []model.Change

	queue := make([]worklistItem, len(workOrders))
	copy(queue, workOrders)

	maxIterations := len(workOrders) * maxWorklistMultiplier
	iterations := 0

	for len(queue) > 0 {
		iterations++
		if iterations > maxIterations {
			return model.ReflowResult{
				RunID:             runID,
				Success:           false,
				UpdatedWorkOrders: schedule,
				Changes:           changes,
				Explanation:       fmt.Sprintf("worklist iteration bound (%d) exceeded", maxIterations),
			}, nil
		}
		if err := ctx.Err(); err != nil {
			return model.ReflowResult{
				RunID:             runID,
				Success:           false,
				UpdatedWorkOrders: schedule,
				Changes:           changes,
				Explanation:       fmt.Sprintf("reflow canceled: %v", err),
			}, nil
		}

		o := queue[0]
		queue = queue[1:]

		if placedSet[o.ID] {
			continue
		}

		wc, ok := wcByID[o.WorkCenterID]
		if !ok {
			return model.ReflowResult{}, &UnknownMachineError{WorkOrderID: o.ID, WorkCenterID: o.WorkCenterID}
		}

		var unplacedDeps []model.WorkOrder
		for _, depID := range o.DependsOn {
			dep, exists := origByID[depID]
			if !exists {
				return model.ReflowResult{}, &UnresolvedDependencyError{WorkOrderID: o.ID, DependencyID: depID}
			}
			if !placedSet[depID] {
				unplacedDeps = append(unplacedDeps, dep)
			}
		}
		if len(unplacedDeps) > 0 {
			queue = append(append(unplacedDeps, queue...), o)
			continue
		}

		oldStart, oldEnd := o.Start, o.End
		existingOnMachine := len(schedule[o.WorkCenterID])

		if o.IsMaintenance {
			// Pinned: start/end are authoritative and never altered.
		} else {
			earliestStart := o.Start
			for _, depID := range o.DependsOn {
				if dep, exists := placedIndex[depID]; exists && dep.End.After(earliestStart.Time) {
					earliestStart = dep.End
				}
			}
			snapped := calendar.NextAvailable(earliestStart, wc)

			newStart, newEnd, err := resolver.Resolve(o, snapped, wc, schedule[o.WorkCenterID])
			if err != nil {
				return model.ReflowResult{}, fmt.Errorf("reflow: placing work order %s: %w", o.ID, err)
			}
			o.Start, o.End = newStart, newEnd
		}

		schedule[o.WorkCenterID] = append(schedule[o.WorkCenterID], o)
		placedIndex[o.ID] = o
		placedSet[o.ID] = true

		if !o.Start.Equal(oldStart.Time) || !o.End.Equal(oldEnd.Time) {
			changes = append(changes, buildChange(o, oldStart, oldEnd, placedIndex, existingOnMachine))
		}
	}

	validation := constraint.ValidateSchedule(schedule, workCenters)

	explanation := explain(validation, changes)

	return model.ReflowResult{
		RunID:             runID,
		Success:           validation.Valid,
		UpdatedWorkOrders: schedule,
		Changes:           changes,
		Explanation:       explanation,
		Errors:            validation.Errors,
	}, nil
}

// buildChange records how o moved. The dependency-delay check compares
// each dependency's *new* (placed) end against o's *original* start,
// deliberately — see SPEC_FULL.md §9 Open Question #4 — rather than
// against o's new start, because the question being answered is "did a
// dependency push this order later than it was originally planned," not
// "is this order's new placement still dependency-valid" (the validator
// already answers that one).
func buildChange(o model.WorkOrder, oldStart, oldEnd model.Instant, placedIndex map[string]model.WorkOrder, existingOnMachine int) model.Change {
	reason := "Shift or maintenance constraint"
	for _, depID := range o.DependsOn {
		if dep, ok := placedIndex[depID]; ok && dep.End.After(oldStart.Time) {
			reason = "dependency delay"
			break
		}
	}
	if reason == "Shift or maintenance constraint" && existingOnMachine > 0 {
		reason = "machine conflict"
	}

	delay := int(o.End.Sub(oldEnd.Time).Minutes())
	if delay < 0 {
		delay = 0
	}

	return model.Change{
		ID:              uuid.New(),
		WorkOrderID:     o.ID,
		WorkOrderNumber: o.Number,
		OldStart:        oldStart,
		OldEnd:          oldEnd,
		NewStart:        o.Start,
		NewEnd:          o.End,
		DelayMinutes:    delay,
		Reason:          reason,
	}
}

func explain(validation constraint.ValidationResult, changes []model.Change) string {
	if !validation.Valid {
		return strings.Join(validation.Errors, "; ")
	}
	if len(changes) == 0 {
		return "no changes required"
	}
	total := 0
	for _, c := range changes {
		total += c.DelayMinutes
	}
	return fmt.Sprintf("Rescheduled %d work order(s) with total delay of %d minutes", len(changes), total)
}
