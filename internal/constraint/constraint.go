// Package constraint holds the pure predicates and the whole-schedule
// validator that decide whether a placement is legal: machine overlap,
// dependency satisfaction, maintenance overlap, and dependency-graph
// cycle detection.
package constraint

import (
	"fmt"
	"strings"

	"github.com/dsi-mfg/reflow/internal/model"
)

// MachineOverlap reports whether a and b are on the same machine and
// their half-open [start,end) intervals intersect.
func MachineOverlap(a, b model.WorkOrder) bool {
	if a.WorkCenterID != b.WorkCenterID {
		return false
	}
	return a.Start.Before(b.End.Time) && a.End.After(b.Start.Time)
}

// DependenciesSatisfied reports whether every dependency listed in
// wo.DependsOn exists in pool and has already finished by wo.Start.
func DependenciesSatisfied(wo model.WorkOrder, pool map[string]model.WorkOrder) bool {
	for _, depID := range wo.DependsOn {
		dep, ok := pool[depID]
		if !ok {
			return false
		}
		if dep.End.After(wo.Start.Time) {
			return false
		}
	}
	return true
}

// DetectCycles runs a DFS with a recursion-stack marker over the
// dependency graph implied by orders' DependsOn lists, returning one
// human-readable error string per cycle found. A work order depending on
// an id not present in orders is silently ignored here — it cannot form a
// cycle by itself; the driver reports unresolvable ids separately.
func DetectCycles(orders []model.WorkOrder) []string {
	byID := make(map[string]model.WorkOrder, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(orders))
	var errs []string

	var visit func(id string, path []string)
	visit = func(id string, path []string) {
		switch state[id] {
		case done:
			return
		case onStack:
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]string{}, path[cycleStart:]...), id)
			errs = append(errs, fmt.Sprintf("Circular dependency detected: %s", strings.Join(cycle, " → ")))
			return
		}
		state[id] = onStack
		path = append(path, id)
		o, ok := byID[id]
		if ok {
			for _, dep := range o.DependsOn {
				if _, exists := byID[dep]; !exists {
					continue
				}
				visit(dep, path)
			}
		}
		state[id] = done
	}

	for _, o := range orders {
		if state[o.ID] == unvisited {
			visit(o.ID, nil)
		}
	}
	return errs
}

// ValidationResult is the outcome of validating a full schedule.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateSchedule checks, for each machine's placed orders: acyclic
// dependencies, dependency satisfaction (against every placed order across
// all machines, since a dependency may sit on a different machine than its
// dependent), pairwise machine overlap, and maintenance-window overlap.
// Errors accumulate rather than short-circuit.
func ValidateSchedule(schedule model.Schedule, workCenters []model.WorkCenter) ValidationResult {
	wcByID := make(map[string]model.WorkCenter, len(workCenters))
	for _, wc := range workCenters {
		wcByID[wc.ID] = wc
	}

	pool := make(map[string]model.WorkOrder)
	for _, orders := range schedule {
		for _, o := range orders {
			pool[o.ID] = o
		}
	}

	var errs []string
	for machineID, orders := range schedule {
		errs = append(errs, DetectCycles(orders)...)

		wc, known := wcByID[machineID]

		for i, o := range orders {
			if !DependenciesSatisfied(o, pool) {
				errs = append(errs, fmt.Sprintf("work order %s (%s) has an unsatisfied dependency", o.ID, o.Number))
			}
			for j, other := range orders {
				if i == j {
					continue
				}
				if MachineOverlap(o, other) {
					errs = append(errs, fmt.Sprintf("work order %s (%s) overlaps %s (%s) on machine %s", o.ID, o.Number, other.ID, other.Number, machineID))
				}
			}
			if known {
				for _, w := range wc.MaintenanceWindows {
					if o.Start.Before(w.End.Time) && o.End.After(w.Start.Time) {
						errs = append(errs, fmt.Sprintf("work order %s (%s) overlaps maintenance window on machine %s", o.ID, o.Number, machineID))
					}
				}
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
