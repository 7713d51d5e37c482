package departure

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func newTestResolver(t *testing.T, now time.Time) *Resolver {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return NewResolver(loc, clockwork.NewFakeClockAt(now), "TLH")
}

func TestResolver_DerivesDateAndWeekdayInConfiguredZone(t *testing.T) {
	// 03:00 UTC Tuesday is still Monday evening in New York.
	r := newTestResolver(t, time.Date(2025, 9, 23, 3, 0, 0, 0, time.UTC))

	id, state, err := r.Resolve(RawUpdate{ScheduledTime: str("14:45"), ResourceSlot: str("4")})
	require.NoError(t, err)
	require.Equal(t, "2025-09-22", id.ServiceDateISO())
	require.Equal(t, "Monday", id.DayOfWeek)
	require.Equal(t, "TLH", id.Destination)
	require.Equal(t, "14:45", id.ScheduledTime)
	require.Equal(t, "14:45", state.EffectiveTime)
	require.Nil(t, state.EstimatedTime)
	require.Equal(t, "4", *state.ResourceSlot)
}

func TestResolver_UsesSuppliedServiceDate(t *testing.T) {
	r := newTestResolver(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	id, _, err := r.Resolve(RawUpdate{
		ScheduledTime: str("9:05"),
		ServiceDate:   str("2025-09-22"),
		DayOfWeek:     str("Monday"),
		Destination:   str("JAX"),
	})
	require.NoError(t, err)
	require.Equal(t, "2025-09-22", id.ServiceDateISO())
	require.Equal(t, "Monday", id.DayOfWeek)
	require.Equal(t, "JAX", id.Destination)
	require.Equal(t, "09:05", id.ScheduledTime)
}

func TestResolver_LegacyDepartureTimeFallback(t *testing.T) {
	r := newTestResolver(t, time.Date(2025, 9, 22, 15, 0, 0, 0, time.UTC))

	id, _, err := r.Resolve(RawUpdate{DepartureTime: str("14:45")})
	require.NoError(t, err)
	require.Equal(t, "14:45", id.ScheduledTime)

	id, _, err = r.Resolve(RawUpdate{ScheduledTime: str("10:00"), DepartureTime: str("14:45")})
	require.NoError(t, err)
	require.Equal(t, "10:00", id.ScheduledTime)
}

func TestResolver_InvalidInput(t *testing.T) {
	r := newTestResolver(t, time.Date(2025, 9, 22, 15, 0, 0, 0, time.UTC))

	cases := map[string]RawUpdate{
		"no time":          {ResourceSlot: str("4")},
		"blank time":       {ScheduledTime: str("  ")},
		"bad time":         {ScheduledTime: str("25:99")},
		"bad date":         {ScheduledTime: str("14:45"), ServiceDate: str("22/09/2025")},
		"weekday mismatch": {ScheduledTime: str("14:45"), ServiceDate: str("2025-09-22"), DayOfWeek: str("Friday")},
	}
	for name, raw := range cases {
		_, _, err := r.Resolve(raw)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrInvalidInput), name)
	}
}

func TestResolver_EstimatedAndEffectiveTime(t *testing.T) {
	r := newTestResolver(t, time.Date(2025, 9, 22, 15, 0, 0, 0, time.UTC))

	_, state, err := r.Resolve(RawUpdate{ScheduledTime: str("14:45"), EstimatedTime: str("On time")})
	require.NoError(t, err)
	require.Nil(t, state.EstimatedTime)
	require.Equal(t, "14:45", state.EffectiveTime)

	_, state, err = r.Resolve(RawUpdate{ScheduledTime: str("14:45"), EstimatedTime: str("14:45")})
	require.NoError(t, err)
	require.Nil(t, state.EstimatedTime)

	_, state, err = r.Resolve(RawUpdate{ScheduledTime: str("14:45"), EstimatedTime: str("14:52")})
	require.NoError(t, err)
	require.Equal(t, "14:52", *state.EstimatedTime)
	require.Equal(t, "14:52", state.EffectiveTime)

	_, state, err = r.Resolve(RawUpdate{ScheduledTime: str("14:45"), EstimatedTime: str("Delayed"), EffectiveDisplayTime: str("15:10")})
	require.NoError(t, err)
	require.Equal(t, "Delayed", *state.EstimatedTime)
	require.Equal(t, "15:10", state.EffectiveTime)
}

func TestResolver_EmptyOptionalFieldsAreAbsent(t *testing.T) {
	r := newTestResolver(t, time.Date(2025, 9, 22, 15, 0, 0, 0, time.UTC))

	cancelled := true
	_, state, err := r.Resolve(RawUpdate{
		ScheduledTime:      str("14:45"),
		ResourceSlot:       str(""),
		Provider:           str(" "),
		IsCancelled:        &cancelled,
		CancellationReason: str("Staff shortage"),
	})
	require.NoError(t, err)
	require.Nil(t, state.ResourceSlot)
	require.Nil(t, state.Provider)
	require.True(t, state.IsCancelled)
	require.Equal(t, "Staff shortage", *state.CancellationReason)
}

func TestResolver_RejectsValuesWiderThanColumns(t *testing.T) {
	r := newTestResolver(t, time.Date(2025, 9, 22, 18, 0, 0, 0, time.UTC))

	cases := map[string]RawUpdate{
		"destination":    {ScheduledTime: str("14:45"), Destination: str(strings.Repeat("X", MaxDestinationLen+1))},
		"resource_slot":  {ScheduledTime: str("14:45"), ResourceSlot: str(strings.Repeat("9", MaxResourceSlotLen+1))},
		"estimated_time": {ScheduledTime: str("14:45"), EstimatedTime: str("delayed " + strings.Repeat("a", MaxEstimatedTimeLen))},
		"provider":       {ScheduledTime: str("14:45"), Provider: str(strings.Repeat("p", MaxProviderLen+1))},
	}
	for field, raw := range cases {
		_, _, err := r.Resolve(raw)
		require.ErrorIs(t, err, ErrInvalidInput, field)
		require.Contains(t, err.Error(), field)
	}

	// Width is counted in characters, not bytes.
	_, state, err := r.Resolve(RawUpdate{ScheduledTime: str("14:45"), ResourceSlot: str(strings.Repeat("é", MaxResourceSlotLen))})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("é", MaxResourceSlotLen), *state.ResourceSlot)
}

func TestChanged_NoPrior(t *testing.T) {
	require.True(t, Changed(nil, State{EffectiveTime: "14:45"}))
}

func TestChanged_IdenticalIsUnchanged(t *testing.T) {
	a := State{ResourceSlot: str("4"), Provider: str("Greyhound"), EffectiveTime: "14:45"}
	b := State{ResourceSlot: str("4"), Provider: str("Greyhound"), EffectiveTime: "14:45"}
	require.False(t, Changed(&a, b))
}

func TestChanged_NullAwareEquality(t *testing.T) {
	prev := State{ResourceSlot: nil, EffectiveTime: "14:45"}
	require.False(t, Changed(&prev, State{ResourceSlot: nil, EffectiveTime: "14:45"}))
	require.True(t, Changed(&prev, State{ResourceSlot: str("4"), EffectiveTime: "14:45"}))

	withSlot := State{ResourceSlot: str("4"), EffectiveTime: "14:45"}
	require.True(t, Changed(&withSlot, State{ResourceSlot: nil, EffectiveTime: "14:45"}))
}

func TestChanged_EachComparedField(t *testing.T) {
	base := State{
		ResourceSlot:       str("4"),
		Provider:           str("Greyhound"),
		CancellationReason: nil,
		EstimatedTime:      nil,
		EffectiveTime:      "14:45",
	}
	mutations := map[string]func(s *State){
		"slot":      func(s *State) { s.ResourceSlot = str("5") },
		"provider":  func(s *State) { s.Provider = str("FlixBus") },
		"cancelled": func(s *State) { s.IsCancelled = true },
		"reason":    func(s *State) { s.CancellationReason = str("Weather") },
		"estimated": func(s *State) { s.EstimatedTime = str("14:50") },
		"effective": func(s *State) { s.EffectiveTime = "14:50" },
	}
	for name, mutate := range mutations {
		next := base
		mutate(&next)
		require.True(t, Changed(&base, next), name)
	}
}

func TestDistributionRequest_Validate(t *testing.T) {
	require.NoError(t, DistributionRequest{DayOfWeek: "Monday", ScheduledTime: "14:45"}.Validate())
	require.NoError(t, DistributionRequest{DayOfWeek: "Sunday", ScheduledTime: "9:05", Destination: "TLH"}.Validate())

	err := DistributionRequest{DayOfWeek: "Funday", ScheduledTime: "14:45"}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "day_of_week")

	err = DistributionRequest{DayOfWeek: "Monday", ScheduledTime: "25:99"}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "scheduled_time")

	err = DistributionRequest{DayOfWeek: "monday", ScheduledTime: "1445"}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "day_of_week")
	require.Contains(t, err.Error(), "scheduled_time")

	err = DistributionRequest{}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "is required")
}
