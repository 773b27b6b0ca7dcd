package expiry

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the accepted input formats for calendar dates, most specific last.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate parses an ISO-8601 date or timestamp and returns its calendar date
// at midnight UTC. Timestamps keep the calendar date of their own offset.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return CivilDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
