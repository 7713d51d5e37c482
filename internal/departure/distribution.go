package departure

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/Leganyst/platform-tracker/internal/calendar"
)

// DistributionQuery selects one recurring departure. ExcludeDate is normally
// today, so an unfinished day never counts.
type DistributionQuery struct {
	DayOfWeek     string
	ScheduledTime string
	Destination   string
	ExcludeDate   time.Time
}

// SlotCount is the number of service days whose final known state used Slot.
type SlotCount struct {
	Slot  string `json:"slot"`
	Count int    `json:"count"`
}

// RecurringDistribution is the slot history of one recurring departure.
type RecurringDistribution struct {
	RecurringEvent
	TotalDays int         `json:"total_days"`
	Slots     []SlotCount `json:"slots"`
}

// CompareSlots orders slot identifiers so that numbers sort numerically
// ("2" < "10" < "10A") and numbered slots come before purely textual ones.
func CompareSlots(a, b string) int {
	an, arest := splitNumericPrefix(a)
	bn, brest := splitNumericPrefix(b)

	switch {
	case an != "" && bn != "":
		if c := compareDigits(an, bn); c != 0 {
			return c
		}
		if c := strings.Compare(arest, brest); c != 0 {
			return c
		}
	case an != "":
		return -1
	case bn != "":
		return 1
	}
	return strings.Compare(a, b)
}

// SortSlotCounts sorts in place by slot.
func SortSlotCounts(counts []SlotCount) {
	slices.SortFunc(counts, func(x, y SlotCount) int {
		return CompareSlots(x.Slot, y.Slot)
	})
}

// CompareRecurring orders recurring events Monday..Sunday, then by scheduled
// time, then by destination.
func CompareRecurring(a, b RecurringEvent) int {
	return cmp.Or(
		cmp.Compare(calendar.WeekdayRank(a.DayOfWeek), calendar.WeekdayRank(b.DayOfWeek)),
		strings.Compare(a.ScheduledTime, b.ScheduledTime),
		strings.Compare(a.Destination, b.Destination),
	)
}

func splitNumericPrefix(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// compareDigits compares two decimal strings without parsing, so arbitrarily
// long identifiers cannot overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
