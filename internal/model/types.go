// Package model holds the data types shared by the reflow core and the
// surrounding loader, server and CLI layers: calendars, work orders, the
// placed schedule, and the audit log of changes.
package model

import "github.com/google/uuid"

// Shift is a half-open interval [startHour:00, endHour:00) on one weekday.
// DayOfWeek follows Go's own time.Weekday numbering: Sunday=0 .. Saturday=6.
type Shift struct {
	DayOfWeek int
	StartHour int
	EndHour   int
}

// MaintenanceWindow is a half-open blocked interval [Start, End) on a
// machine's calendar. It may cross day boundaries.
type MaintenanceWindow struct {
	Start  Instant
	End    Instant
	Reason string
}

// Contains reports whether t falls inside the half-open window.
func (w MaintenanceWindow) Contains(t Instant) bool {
	return !t.Before(w.Start.Time) && t.Before(w.End.Time)
}

// WorkCenter is a machine with a weekly shift calendar and a set of
// maintenance windows. At most one Shift per weekday. Identity is by ID;
// a WorkCenter is immutable during a reflow.
type WorkCenter struct {
	ID                 string
	Name               string
	Shifts             []Shift
	MaintenanceWindows []MaintenanceWindow
}

// WorkOrder is a unit of manufacturing work with a duration and machine
// assignment. IsMaintenance pins Start/End as authoritative: the reflow
// driver never moves a maintenance-pinned order.
type WorkOrder struct {
	ID              string
	Number          string
	WorkCenterID    string
	Start           Instant
	End             Instant
	DurationMinutes int
	IsMaintenance   bool
	DependsOn       []string
}

// Interval returns the order's current half-open placement interval.
func (o WorkOrder) Interval() (Instant, Instant) {
	return o.Start, o.End
}

// Schedule maps a work center id to its placed work orders, in the order
// the driver placed them (insertion order, not a sort order).
type Schedule map[string][]WorkOrder

// Change is one audit-log entry recording how a work order's placement
// moved during a reflow.
type Change struct {
	ID              uuid.UUID
	WorkOrderID     string
	WorkOrderNumber string
	OldStart        Instant
	OldEnd          Instant
	NewStart        Instant
	NewEnd          Instant
	DelayMinutes    int
	Reason          string
}

// ReflowResult is the complete output of a single Reflow call.
type ReflowResult struct {
	RunID             uuid.UUID
	Success           bool
	UpdatedWorkOrders Schedule
	Changes           []Change
	Explanation       string
	Errors            []string
}
