package evidence

import (
	"regexp"
	"strconv"
	"strings"
)

var reTimeframe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)(?:\s*(?:-|–|to)\s*(\d+(?:\.\d+)?))?\s*(day|week|wk|month|mo|year|yr)s?`)

// ParseTimeframeWeeks converts free text such as "8 weeks", "2-3 months"
// or "10 days" into weeks. Ranges use their upper bound. ok is false when
// no duration can be read.
func ParseTimeframeWeeks(s string) (weeks float64, ok bool) {
	m := reTimeframe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		if upper, err := strconv.ParseFloat(m[2], 64); err == nil && upper > n {
			n = upper
		}
	}

	switch strings.ToLower(m[3]) {
	case "day":
		return n / 7, true
	case "week", "wk":
		return n, true
	case "month", "mo":
		return n * 52 / 12, true
	case "year", "yr":
		return n * 52, true
	}
	return 0, false
}
