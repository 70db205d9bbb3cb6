package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsi-mfg/reflow/internal/model"
)

func inst(t *testing.T, s string) model.Instant {
	t.Helper()
	i, err := model.ParseInstant(s)
	require.NoError(t, err)
	return i
}

func weekdayShift() model.WorkCenter {
	var shifts []model.Shift
	for _, d := range []int{1, 2, 3, 4, 5} {
		shifts = append(shifts, model.Shift{DayOfWeek: d, StartHour: 8, EndHour: 16})
	}
	return model.WorkCenter{ID: "m1", Shifts: shifts}
}

func TestResolve_NoConflict(t *testing.T) {
	wc := weekdayShift()
	wo := model.WorkOrder{ID: "A", WorkCenterID: "m1", DurationMinutes: 60}
	s := inst(t, "2026-08-10T09:00:00Z")
	start, end, err := Resolve(wo, s, wc, nil)
	require.NoError(t, err)
	assert.Equal(t, s.String(), start.String())
	assert.Equal(t, "2026-08-10T10:00:00Z", end.String())
}

func TestResolve_PushesPastConflict(t *testing.T) {
	wc := weekdayShift()
	placed := []model.WorkOrder{{
		ID: "A", WorkCenterID: "m1",
		Start: inst(t, "2026-08-10T09:00:00Z"), End: inst(t, "2026-08-10T10:00:00Z"),
	}}
	wo := model.WorkOrder{ID: "B", WorkCenterID: "m1", DurationMinutes: 60}
	s := inst(t, "2026-08-10T09:00:00Z")
	start, end, err := Resolve(wo, s, wc, placed)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-10T10:00:00Z", start.String())
	assert.Equal(t, "2026-08-10T11:00:00Z", end.String())
}

func TestResolve_PushPastConflictThenShift(t *testing.T) {
	wc := weekdayShift()
	placed := []model.WorkOrder{{
		ID: "A", WorkCenterID: "m1",
		Start: inst(t, "2026-08-10T15:30:00Z"), End: inst(t, "2026-08-10T16:00:00Z"),
	}}
	wo := model.WorkOrder{ID: "B", WorkCenterID: "m1", DurationMinutes: 30}
	s := inst(t, "2026-08-10T15:30:00Z")
	start, _, err := Resolve(wo, s, wc, placed)
	require.NoError(t, err)
	// conflict pushes candidate to 16:00, which is exactly shift end, so
	// NextAvailable rolls to the next working day.
	assert.Equal(t, "2026-08-11T08:00:00Z", start.String())
}
