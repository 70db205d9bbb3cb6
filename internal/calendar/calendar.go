// Package calendar implements the pure calendar arithmetic a reflow needs:
// finding a machine's shift for a given weekday, testing maintenance
// overlap, advancing to the next working instant, and projecting a
// duration forward across shifts and maintenance windows.
//
// Every function here is pure: same inputs, same output, no shared state.
package calendar

import (
	"fmt"

	"github.com/dsi-mfg/reflow/internal/model"
)

// maxWeekdayJumps bounds nextAvailable's day-advance loop: seven days
// covers a full week even if every day but one has no shift.
const maxWeekdayJumps = 7

// maxProjectIterations bounds projectEnd's loop. Exceeding it means the
// work center's calendar can never absorb the requested duration (e.g. no
// shifts defined at all) and is reported as a fatal internal error.
const maxProjectIterations = 10000

// ErrBoundExceeded is returned when projectEnd cannot converge within its
// iteration bound.
type ErrBoundExceeded struct {
	WorkCenterID string
}

func (e *ErrBoundExceeded) Error() string {
	return fmt.Sprintf("calendar: projectEnd exceeded %d iterations for work center %s (no reachable shift?)", maxProjectIterations, e.WorkCenterID)
}

// ShiftForWeekday returns the shift covering the given weekday (Go's
// Sunday=0..Saturday=6 numbering), or false if the machine has no shift
// on that day.
func ShiftForWeekday(day int, wc model.WorkCenter) (model.Shift, bool) {
	for _, s := range wc.Shifts {
		if s.DayOfWeek == day {
			return s, true
		}
	}
	return model.Shift{}, false
}

// InMaintenance reports whether t falls inside any maintenance window of wc.
func InMaintenance(t model.Instant, wc model.WorkCenter) bool {
	for _, w := range wc.MaintenanceWindows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// maintenanceWindowAt returns the maintenance window containing t, if any.
func maintenanceWindowAt(t model.Instant, wc model.WorkCenter) (model.MaintenanceWindow, bool) {
	for _, w := range wc.MaintenanceWindows {
		if w.Contains(t) {
			return w, true
		}
	}
	return model.MaintenanceWindow{}, false
}

// nextMaintenanceStartBefore returns the earliest maintenance-window start
// that falls within [from, before), i.e. a window that begins during the
// current shift segment before it ends. This is the fix for SPEC_FULL.md
// §9 Open Question #3: projectEnd must break a shift segment at a
// maintenance window that starts inside it, not just skip windows it is
// already standing in.
func nextMaintenanceStartBefore(from, before model.Instant, wc model.WorkCenter) (model.Instant, bool) {
	var best model.Instant
	found := false
	for _, w := range wc.MaintenanceWindows {
		if !w.Start.Before(from.Time) && w.Start.Before(before.Time) {
			if !found || w.Start.Before(best.Time) {
				best = w.Start
				found = true
			}
		}
	}
	return best, found
}

// NextAvailable returns the earliest instant t' >= t that lies within some
// shift and outside every maintenance window.
//
// spec.md's pseudocode for this function disclaims responsibility for t
// landing exactly at or after that day's shift end ("the caller is
// responsible for that case"), but the half-open interval invariant
// (SPEC_FULL.md §8 boundary: a work order starting exactly at shiftEnd
// must be advanced) only holds end-to-end if some step snaps that case
// forward, and the reflow driver's earliest-start computation has no
// other natural place to do it. Resolving this in NextAvailable itself —
// rather than duplicating the same day-roll logic at every call site —
// keeps the contract "NextAvailable(t) is always a genuinely workable
// instant" true without exception.
func NextAvailable(t model.Instant, wc model.WorkCenter) model.Instant {
	cur := t
	for jumps := 0; jumps <= maxWeekdayJumps; jumps++ {
		if w, ok := maintenanceWindowAt(cur, wc); ok {
			cur = w.End
			continue
		}
		shift, ok := ShiftForWeekday(cur.Weekday(), wc)
		if !ok {
			cur = cur.StartOfNextDay()
			continue
		}
		day := cur.StartOfDay()
		shiftStart := day.AddMinutes(shift.StartHour * 60)
		shiftEnd := day.AddMinutes(shift.EndHour * 60)
		if cur.Before(shiftStart.Time) {
			cur = shiftStart
			continue
		}
		if !cur.Before(shiftEnd.Time) {
			cur = cur.StartOfNextDay()
			continue
		}
		return cur
	}
	return cur
}

// ProjectEnd returns the instant reached by accumulating durationMinutes
// of in-shift, non-maintenance time starting at start, skipping
// maintenance windows both at the starting instant and anywhere inside
// the shift segments traversed.
func ProjectEnd(start model.Instant, durationMinutes int, wc model.WorkCenter) (model.Instant, error) {
	cur := start
	remaining := durationMinutes

	for iter := 0; ; iter++ {
		if remaining <= 0 {
			return cur, nil
		}
		if iter >= maxProjectIterations {
			return model.Instant{}, &ErrBoundExceeded{WorkCenterID: wc.ID}
		}

		if w, ok := maintenanceWindowAt(cur, wc); ok {
			cur = NextAvailable(w.End, wc)
			continue
		}

		shift, ok := ShiftForWeekday(cur.Weekday(), wc)
		if !ok {
			cur = cur.StartOfNextDay()
			continue
		}

		day := cur.StartOfDay()
		shiftStart := day.AddMinutes(shift.StartHour * 60)
		shiftEnd := day.AddMinutes(shift.EndHour * 60)

		if cur.Before(shiftStart.Time) {
			cur = shiftStart
			continue
		}
		if !cur.Before(shiftEnd.Time) {
			cur = cur.StartOfNextDay()
			continue
		}

		segmentEnd := shiftEnd
		if mStart, ok := nextMaintenanceStartBefore(cur, shiftEnd, wc); ok && mStart.Before(segmentEnd.Time) {
			segmentEnd = mStart
		}

		available := int(segmentEnd.Sub(cur.Time).Minutes())
		if available <= 0 {
			// The maintenance window starts exactly at cur; let the
			// maintenance branch above handle it next iteration.
			cur = segmentEnd
			continue
		}

		consume := remaining
		if consume > available {
			consume = available
		}
		cur = cur.AddMinutes(consume)
		remaining -= consume

		if remaining > 0 && !cur.Before(segmentEnd.Time) {
			if segmentEnd.Equal(shiftEnd.Time) {
				cur = cur.StartOfNextDay()
			}
			// otherwise we stopped at a maintenance window; the top-of-loop
			// maintenance check will advance past it.
		}
	}
}
