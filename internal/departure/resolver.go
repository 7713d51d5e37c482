package departure

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/Leganyst/platform-tracker/internal/calendar"
)

// Values the feed uses to say "no deviation from the timetable".
var onScheduleMarkers = map[string]struct{}{
	"on time":   {},
	"ontime":    {},
	"due":       {},
	"scheduled": {},
	"-":         {},
	"--":        {},
}

// Resolver turns raw updates into identities. It is the only place where
// service dates and weekday names are derived, always in one location.
type Resolver struct {
	loc                *time.Location
	clock              clockwork.Clock
	defaultDestination string
}

func NewResolver(loc *time.Location, clock clockwork.Clock, defaultDestination string) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{loc: loc, clock: clock, defaultDestination: defaultDestination}
}

// Location is the civil timezone service dates are derived in.
func (r *Resolver) Location() *time.Location { return r.loc }

// DefaultDestination is used when an update or query names none.
func (r *Resolver) DefaultDestination() string { return r.defaultDestination }

// Today returns the current service date as a UTC midnight.
func (r *Resolver) Today() time.Time {
	return calendar.Date(r.clock.Now(), r.loc)
}

// Resolve fills in the identity of a raw update and extracts its comparable
// state. It fails with ErrInvalidInput when no usable time is present or when
// the supplied date fields are malformed or inconsistent.
func (r *Resolver) Resolve(raw RawUpdate) (Identity, State, error) {
	scheduled, err := r.scheduledTime(raw)
	if err != nil {
		return Identity{}, State{}, err
	}

	serviceDate := r.Today()
	if s := clean(raw.ServiceDate); s != nil {
		serviceDate, err = calendar.ParseDate(*s)
		if err != nil {
			return Identity{}, State{}, fmt.Errorf("%w: service date %q", ErrInvalidInput, *s)
		}
	}

	dayOfWeek := serviceDate.Weekday().String()
	if s := clean(raw.DayOfWeek); s != nil && *s != dayOfWeek {
		return Identity{}, State{}, fmt.Errorf("%w: day of week %q does not match service date %s",
			ErrInvalidInput, *s, serviceDate.Format(calendar.ISODate))
	}

	destination := r.defaultDestination
	if s := clean(raw.Destination); s != nil {
		destination = *s
	}
	if destination == "" {
		return Identity{}, State{}, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	estimated := estimatedTime(raw.EstimatedTime, scheduled)

	effective := scheduled
	display := clean(raw.EffectiveDisplayTime)
	switch {
	case estimated != nil && calendar.IsClock(*estimated):
		effective = *estimated
	case display != nil && calendar.IsClock(*display):
		effective, _ = calendar.NormalizeClock(*display)
	}

	state := State{
		ResourceSlot:       clean(raw.ResourceSlot),
		Provider:           clean(raw.Provider),
		IsCancelled:        raw.IsCancelled != nil && *raw.IsCancelled,
		CancellationReason: clean(raw.CancellationReason),
		EstimatedTime:      estimated,
		EffectiveTime:      effective,
	}
	if err := checkLengths(destination, state); err != nil {
		return Identity{}, State{}, err
	}

	id := Identity{
		ServiceDate:   serviceDate,
		DayOfWeek:     dayOfWeek,
		Destination:   destination,
		ScheduledTime: scheduled,
	}
	return id, state, nil
}

func (r *Resolver) scheduledTime(raw RawUpdate) (string, error) {
	value := clean(raw.ScheduledTime)
	if value == nil {
		value = clean(raw.DepartureTime)
	}
	if value == nil {
		return "", fmt.Errorf("%w: no scheduled or departure time", ErrInvalidInput)
	}
	t, err := calendar.NormalizeClock(*value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return t, nil
}

// estimatedTime returns nil when the estimate carries no deviation.
func estimatedTime(v *string, scheduled string) *string {
	s := clean(v)
	if s == nil {
		return nil
	}
	if _, ok := onScheduleMarkers[strings.ToLower(*s)]; ok {
		return nil
	}
	if t, err := calendar.NormalizeClock(*s); err == nil {
		if t == scheduled {
			return nil
		}
		return &t
	}
	return s
}

// Column widths of the snapshots table, in characters.
const (
	MaxDestinationLen   = 64
	MaxResourceSlotLen  = 16
	MaxEstimatedTimeLen = 32
	MaxProviderLen      = 255
)

func checkLengths(destination string, st State) error {
	fields := []struct {
		name  string
		value *string
		max   int
	}{
		{"destination", &destination, MaxDestinationLen},
		{"resource_slot", st.ResourceSlot, MaxResourceSlotLen},
		{"estimated_time", st.EstimatedTime, MaxEstimatedTimeLen},
		{"provider", st.Provider, MaxProviderLen},
	}
	for _, f := range fields {
		if f.value != nil && utf8.RuneCountInString(*f.value) > f.max {
			return fmt.Errorf("%w: %s longer than %d characters", ErrInvalidInput, f.name, f.max)
		}
	}
	return nil
}

// clean trims v and maps empty strings to nil.
func clean(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
