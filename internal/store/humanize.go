package store

import "time"

// FormatRelative renders a timestamp the way the session list displays it:
// "Today at 03:04 PM", "Yesterday at 03:04 PM", the weekday for anything in
// the past week, and "Jan 02, 2006" for older sessions.
func FormatRelative(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return t.Format("Today at 03:04 PM")
	case days == 1:
		return t.Format("Yesterday at 03:04 PM")
	case days < 7:
		return t.Format("Monday at 03:04 PM")
	default:
		return t.Format("Jan 02, 2006")
	}
}
