package model

import (
	"fmt"
	"time"
)

// Instant is a point in time, always interpreted in UTC. It wraps time.Time
// so calendar arithmetic can use the full precision and comparison
// operators of the standard library while the JSON boundary stays
// ISO-8601.
type Instant struct {
	time.Time
}

// NewInstant truncates t to minute resolution and normalizes it to UTC.
func NewInstant(t time.Time) Instant {
	return Instant{t.UTC().Truncate(time.Minute)}
}

// Zero reports whether the instant has never been set.
func (i Instant) Zero() bool {
	return i.Time.IsZero()
}

// Before, After and Equal are inherited from the embedded time.Time; Add
// and Sub likewise. AddMinutes is a small convenience used throughout the
// calendar package.
func (i Instant) AddMinutes(n int) Instant {
	return Instant{i.Time.Add(time.Duration(n) * time.Minute)}
}

// Weekday returns Go's own Sunday=0..Saturday=6 numbering, which is the
// convention this system uses for Shift.DayOfWeek (see SPEC_FULL.md §9.1).
func (i Instant) Weekday() int {
	return int(i.Time.Weekday())
}

// StartOfDay returns midnight UTC of the day containing i.
func (i Instant) StartOfDay() Instant {
	y, m, d := i.Time.Date()
	return Instant{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// StartOfNextDay returns midnight UTC of the day after the one containing i.
func (i Instant) StartOfNextDay() Instant {
	return i.StartOfDay().AddMinutes(24 * 60)
}

const isoLayout = "2006-01-02T15:04:05Z"

// MarshalJSON serializes the instant as an ISO-8601 string with an explicit
// UTC offset, per SPEC_FULL.md §3.
func (i Instant) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.Time.UTC().Format(isoLayout) + `"`), nil
}

// UnmarshalJSON parses an ISO-8601 instant. Layouts with a numeric offset
// or fractional seconds are also accepted so loader input doesn't have to
// be byte-exact.
func (i *Instant) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("instant: not a JSON string: %s", s)
	}
	s = s[1 : len(s)-1]
	t, err := ParseInstant(s)
	if err != nil {
		return err
	}
	*i = t
	return nil
}

// ParseInstant parses an ISO-8601 timestamp in any of the layouts the
// loader's input documents are known to use, normalizing to minute
// resolution UTC.
func ParseInstant(s string) (Instant, error) {
	layouts := []string{
		time.RFC3339,
		isoLayout,
		"2006-01-02T15:04Z",
		"2006-01-02T15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewInstant(t), nil
		} else {
			lastErr = err
		}
	}
	return Instant{}, fmt.Errorf("instant: cannot parse %q: %w", s, lastErr)
}

func (i Instant) String() string {
	return i.Time.UTC().Format(isoLayout)
}
