package departure

import (
	"time"

	"github.com/Leganyst/platform-tracker/internal/calendar"
)

// RawUpdate is one departure as reported by the upstream feed. Every field is
// optional; the Resolver decides what is usable.
type RawUpdate struct {
	ScheduledTime *string `json:"scheduled_time,omitempty"`
	// DepartureTime is the legacy field some feeds send instead of a
	// scheduled time. It is only used when ScheduledTime is absent.
	DepartureTime        *string `json:"departure_time,omitempty"`
	EstimatedTime        *string `json:"estimated_time,omitempty"`
	EffectiveDisplayTime *string `json:"effective_display_time,omitempty"`
	ResourceSlot         *string `json:"resource_slot,omitempty"`
	Provider             *string `json:"provider,omitempty"`
	IsCancelled          *bool   `json:"is_cancelled,omitempty"`
	CancellationReason   *string `json:"cancellation_reason,omitempty"`
	ServiceDate          *string `json:"service_date,omitempty"`
	DayOfWeek            *string `json:"day_of_week,omitempty"`
	Destination          *string `json:"destination,omitempty"`
}

// Identity is the logical-event-instance key: one occurrence of a recurring
// departure on one service date.
type Identity struct {
	ServiceDate   time.Time
	DayOfWeek     string
	Destination   string
	ScheduledTime string
}

// ServiceDateISO returns the service date as YYYY-MM-DD.
func (id Identity) ServiceDateISO() string {
	return id.ServiceDate.Format(calendar.ISODate)
}

// Recurring drops the date, leaving the weekly pattern the instance belongs to.
func (id Identity) Recurring() RecurringEvent {
	return RecurringEvent{
		DayOfWeek:     id.DayOfWeek,
		ScheduledTime: id.ScheduledTime,
		Destination:   id.Destination,
	}
}

// RecurringEvent identifies a weekly departure across many service dates.
type RecurringEvent struct {
	DayOfWeek     string `json:"day_of_week"`
	ScheduledTime string `json:"scheduled_time"`
	Destination   string `json:"destination"`
}

// State holds the fields that decide whether a new snapshot is worth storing.
type State struct {
	ResourceSlot       *string
	Provider           *string
	IsCancelled        bool
	CancellationReason *string
	EstimatedTime      *string
	EffectiveTime      string
}

// Changed reports whether next must be appended after prev. A nil prev means
// no snapshot exists yet for the identity. Absent values compare equal to
// each other and unequal to any present value.
func Changed(prev *State, next State) bool {
	if prev == nil {
		return true
	}
	return !equalPtr(prev.ResourceSlot, next.ResourceSlot) ||
		!equalPtr(prev.Provider, next.Provider) ||
		prev.IsCancelled != next.IsCancelled ||
		!equalPtr(prev.CancellationReason, next.CancellationReason) ||
		!equalPtr(prev.EstimatedTime, next.EstimatedTime) ||
		prev.EffectiveTime != next.EffectiveTime
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
