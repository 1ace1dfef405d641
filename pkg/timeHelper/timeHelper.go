package timehelper

import "time"

const DateLayout = "2006-01-02"

// FormatDate formats t as 'YYYY-MM-DD' in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateBefore returns the 'YYYY-MM-DD' date that lies the given number of
// years, months and days before now. Month arithmetic follows time.AddDate,
// so March 31 minus one month normalizes to March 3 (or 2).
func DateBefore(now time.Time, years, months, days int) string {
	return FormatDate(now.AddDate(-years, -months, -days))
}
