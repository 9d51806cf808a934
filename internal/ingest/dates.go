package ingest

import (
	"strings"
	"time"

	"github.com/pinnacle/tender-finder/internal/models"
)

// closingDateLayouts are the two shapes the remote API emits for closing
// dates, after any zone suffix has been stripped.
var closingDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
}

// displayLayout is how closing dates are shown to the dashboard.
const displayLayout = "02/01/2006 15:04"

// NAValue marks absent or unparseable date fields in the output.
const NAValue = "N/A"

// parseClosingDate parses a raw closing-date string. Trailing Z and
// zone-offset suffixes are stripped, not converted: the remote timestamps
// are treated as naive local times. A negative offset sits after the 'T',
// past the date's own dashes.
func parseClosingDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")
	if i := strings.IndexByte(s, '+'); i > 0 {
		s = s[:i]
	}
	if t := strings.IndexByte(s, 'T'); t > 0 {
		if i := strings.LastIndexByte(s, '-'); i > t {
			s = s[:i]
		}
	}

	for _, layout := range closingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeClosingDate converts a raw closing-date string into its display
// form and the count of whole days remaining relative to now, floored and
// clamped to zero. Absent or unparseable input yields the N/A pair.
func NormalizeClosingDate(raw string, now time.Time) (string, models.DaysToClose) {
	t, ok := parseClosingDate(raw)
	if !ok {
		return NAValue, models.DaysToClose{}
	}

	days := int(t.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return t.Format(displayLayout), models.DaysToClose{Days: days, Known: true}
}
