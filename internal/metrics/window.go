package metrics

import (
	"time"

	"machine-efficiency-backend/internal/model"
	"machine-efficiency-backend/internal/shifttime"
)

// Window returns the absolute bounds of the shift occurrence that contains, or
// most recently started before, now. now must be in the organization's timezone.
//
// An overnight shift observed before its start time of day began on the
// previous calendar day.
func Window(s model.Shift, now time.Time) (start, end time.Time) {
	day := now
	if s.Window().Overnight() && shifttime.FromTime(now) < s.StartTime {
		day = now.AddDate(0, 0, -1)
	}

	start = atMinute(day, s.StartTime)
	if s.Window().Overnight() {
		end = atMinute(day.AddDate(0, 0, 1), s.EndTime)
	} else {
		end = atMinute(day, s.EndTime)
	}
	return start, end
}

// ShiftDate is the calendar date, in now's location, on which the active
// occurrence of s started.
func ShiftDate(s model.Shift, now time.Time) string {
	start, _ := Window(s, now)
	return start.Format(model.DateLayout)
}

func atMinute(day time.Time, m shifttime.Minutes) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, int(m)/60, int(m)%60, 0, 0, day.Location())
}
