// Package projectcode assigns human-readable project codes of the form
// <TypeLetter><YY><WW>-<NNN>, e.g. C2507-001.
package projectcode

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pmtrack/internal/models"
)

const FallbackLetter = "X"

// Letter maps a project-type label to its code letter. Unknown labels get FallbackLetter.
func Letter(label string) string {
	switch models.ProjectType(label) {
	case models.ProjectCustomerDriven:
		return "C"
	case models.ProjectStrategyDriven:
		return "S"
	case models.ProjectInternal:
		return "I"
	default:
		return FallbackLetter
	}
}

// Week returns ceil((dayOfYear + weekday of Jan 1) / 7) for t, where dayOfYear
// is 1-based and Sunday is weekday 0. This is not ISO-8601 week numbering and
// must stay as is: existing codes were issued with it.
func Week(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	n := t.YearDay() + int(jan1.Weekday())
	return (n + 6) / 7
}

// Prefix returns <TypeLetter><YY><WW> for label at t.
func Prefix(label string, t time.Time) string {
	return fmt.Sprintf("%s%02d%02d", Letter(label), t.Year()%100, Week(t))
}

func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// ParseSequence returns the numeric suffix after the last hyphen of code.
// A suffix that is not all ASCII digits (including signs and spaces) yields 0.
func ParseSequence(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 {
		return 0
	}
	suffix := code[i+1:]
	if suffix == "" {
		return 0
	}
	for j := 0; j < len(suffix); j++ {
		if suffix[j] < '0' || suffix[j] > '9' {
			return 0
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}
