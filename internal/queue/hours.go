package queue

import (
	"strings"
	"time"
)

// IsOpen reports whether now falls inside the opening window on now's own clock.
// A window whose close is before its open runs past midnight. Missing bounds mean
// always open; unparsable bounds mean closed.
func IsOpen(opensAt, closesAt string, now time.Time) bool {
	if opensAt == "" || closesAt == "" {
		return true
	}

	openTime, ok := clockOn(now, opensAt)
	if !ok {
		return false
	}
	closeTime, ok := clockOn(now, closesAt)
	if !ok {
		return false
	}

	if closeTime.Before(openTime) {
		closeTime = closeTime.Add(24 * time.Hour)
		// Before today's opening we are still in yesterday's window.
		if now.Before(openTime) {
			openTime = openTime.Add(-24 * time.Hour)
			closeTime = closeTime.Add(-24 * time.Hour)
		}
	}

	return !now.Before(openTime) && now.Before(closeTime)
}

// clockOn places an "HH:MM[:SS]" wall clock on now's date.
func clockOn(now time.Time, clock string) (time.Time, bool) {
	if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}
	t, err := time.ParseInLocation("15:04:05", clock, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location()), true
}
