package tiktokads

import (
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

// MaxWindowDays is the widest span, in days after the window start, that a
// report request may cover. The API rejects ranges of 30 days or more.
const MaxWindowDays = 29

const day = 24 * time.Hour

// DateWindow is an inclusive report date range
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// StartDate returns the start_date query parameter
func (w DateWindow) StartDate() string {
	return timeutil.FormatDate(w.Start)
}

// EndDate returns the end_date query parameter
func (w DateWindow) EndDate() string {
	return timeutil.FormatDate(w.End)
}

// PlanWindows splits the calendar dates [start, end] into consecutive
// windows spanning at most MaxWindowDays days after their start, each
// starting one day after the previous one ended. The last window ends on
// end's date. When end does not fall on a later calendar date than start
// there is nothing to request and the result is empty.
func PlanWindows(start, end time.Time) []DateWindow {
	start, end = timeutil.Date(start), timeutil.Date(end)
	if !end.After(start) {
		return nil
	}

	var windows []DateWindow
	for !start.After(end) {
		next := start.Add(MaxWindowDays * day)
		w := DateWindow{Start: start, End: next}
		if next.After(end) {
			w.End = end
		}
		windows = append(windows, w)
		start = next.Add(day)
	}
	return windows
}
