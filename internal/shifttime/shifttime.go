package shifttime

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MinutesPerDay is the length of the 24h clock shifts live on.
const MinutesPerDay = 1440

var clockRe = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*$`)

// Minutes is a time of day expressed as minutes since midnight, 0-1439.
type Minutes int

// Parse reads a "HH:MM" or "HH:MM:SS" string. Seconds are accepted and dropped.
func Parse(raw string) (Minutes, error) {
	m := clockRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", raw)
	}

	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	if hours > 23 || mins > 59 {
		return 0, fmt.Errorf("invalid time of day %q: out of range", raw)
	}
	if m[3] != "" {
		if secs, _ := strconv.Atoi(m[3]); secs > 59 {
			return 0, fmt.Errorf("invalid time of day %q: out of range", raw)
		}
	}

	return Minutes(hours*60 + mins), nil
}

// FromTime returns the minute of day of t in t's own location.
func FromTime(t time.Time) Minutes {
	return Minutes(t.Hour()*60 + t.Minute())
}

// Valid reports whether m falls on the 24h clock.
func (m Minutes) Valid() bool {
	return m >= 0 && m < MinutesPerDay
}

func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// MarshalText renders the value as "HH:MM".
func (m Minutes) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("minutes of day out of range: %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts the formats understood by Parse.
func (m *Minutes) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Value stores the minute of day as an integer column.
func (m Minutes) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan reads an integer column.
func (m *Minutes) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*m = Minutes(v)
	case int32:
		*m = Minutes(v)
	case int:
		*m = Minutes(v)
	default:
		return fmt.Errorf("cannot scan %T into shifttime.Minutes", src)
	}
	return nil
}

// Duration returns the length of the window from start to end in minutes.
// An end at or before start wraps past midnight, so equal bounds span the whole day.
func Duration(start, end Minutes) int {
	if end > start {
		return int(end - start)
	}
	return int(MinutesPerDay-start) + int(end)
}

// Overlaps reports whether the half-open windows [s1,e1) and [s2,e2) intersect
// on the 24h clock. Touching endpoints never overlap.
//
// Two overnight windows are always reported as overlapping. Only one shift per
// organization may cross midnight.
func Overlaps(s1, e1, s2, e2 Minutes) bool {
	over1 := e1 <= s1
	over2 := e2 <= s2

	switch {
	case !over1 && !over2:
		return s1 < e2 && e1 > s2
	case !over1 && over2:
		return sameDayHitsOvernight(s1, e1, s2, e2)
	case over1 && !over2:
		return sameDayHitsOvernight(s2, e2, s1, e1)
	default:
		return true
	}
}

// sameDayHitsOvernight tests [s,e) against the two day-bounded pieces of an
// overnight window, [os,1440) and [0,oe).
func sameDayHitsOvernight(s, e, os, oe Minutes) bool {
	return e > os || s < oe
}

// Window is one shift's time-of-day bounds.
type Window struct {
	Start Minutes
	End   Minutes
}

// Overnight reports whether the window crosses midnight. Equal bounds are a
// full-day window and count as overnight.
func (w Window) Overnight() bool {
	return w.End <= w.Start
}

// Duration is the window length in minutes.
func (w Window) Duration() int {
	return Duration(w.Start, w.End)
}

// Overlaps reports whether w intersects o.
func (w Window) Overlaps(o Window) bool {
	return Overlaps(w.Start, w.End, o.Start, o.End)
}

// Covers reports whether m is inside the window, both bounds inclusive.
func (w Window) Covers(m Minutes) bool {
	if !w.Overnight() {
		return w.Start <= m && m <= w.End
	}
	return m >= w.Start || m <= w.End
}

// TotalDuration sums the durations of all windows.
func TotalDuration(windows []Window) int {
	total := 0
	for _, w := range windows {
		total += w.Duration()
	}
	return total
}
