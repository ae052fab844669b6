package report

import (
	"time"

	"github.com/andywolf/ci-buglist/internal/launchpad"
)

// DateLayout renders report dates as calendar dates.
const DateLayout = "2006-01-02"

// SelectDate returns the first present candidate.
func SelectDate(candidates ...*time.Time) (time.Time, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return time.Time{}, false
}

// TaskDate picks the date a task is reported under: when the fix was
// committed, else released, else when the task was closed, else created.
func TaskDate(task launchpad.BugTask) (time.Time, bool) {
	return SelectDate(
		task.DateFixCommitted,
		task.DateFixReleased,
		task.DateClosed,
		task.DateCreated,
	)
}
