// Package resolver implements the single-order conflict resolver: given a
// proposed start on a machine, push it forward past whatever already-
// placed orders it collides with, snapping through the calendar at each
// step, until a conflict-free placement is found or the iteration bound
// is exhausted.
package resolver

import (
	"fmt"

	"github.com/dsi-mfg/reflow/internal/calendar"
	"github.com/dsi-mfg/reflow/internal/constraint"
	"github.com/dsi-mfg/reflow/internal/model"
)

// maxIterations bounds the push-forward loop. Exceeding it for a single
// order is a fatal error for that order (spec.md §4.3).
const maxIterations = 100

// ErrBoundExceeded is returned when a placement cannot be resolved within
// maxIterations pushes.
type ErrBoundExceeded struct {
	WorkOrderID string
}

func (e *ErrBoundExceeded) Error() string {
	return fmt.Sprintf("resolver: exceeded %d iterations resolving a conflict-free start for work order %s", maxIterations, e.WorkOrderID)
}

// Resolve finds the earliest conflict-free start time for wo at proposed
// start s on machine wc, given the orders already placed on that machine.
// It returns the chosen start and the projected end.
func Resolve(wo model.WorkOrder, s model.Instant, wc model.WorkCenter, placedOnMachine []model.WorkOrder) (model.Instant, model.Instant, error) {
	for iter := 0; iter < maxIterations; iter++ {
		e, err := calendar.ProjectEnd(s, wo.DurationMinutes, wc)
		if err != nil {
			return model.Instant{}, model.Instant{}, err
		}

		candidate := wo
		candidate.Start = s
		candidate.End = e

		var latestEnd model.Instant
		hasConflict := false
		for _, other := range placedOnMachine {
			if other.ID == wo.ID {
				continue
			}
			if constraint.MachineOverlap(candidate, other) {
				if !hasConflict || other.End.After(latestEnd.Time) {
					latestEnd = other.End
				}
				hasConflict = true
			}
		}

		if !hasConflict {
			return s, e, nil
		}
		s = calendar.NextAvailable(latestEnd, wc)
	}
	return model.Instant{}, model.Instant{}, &ErrBoundExceeded{WorkOrderID: wo.ID}
}
