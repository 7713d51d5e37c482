package calendar

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func TestWeekdayRank_MondayFirst(t *testing.T) {
	require.Equal(t, 0, WeekdayRank("Monday"))
	require.Equal(t, 5, WeekdayRank("Saturday"))
	require.Equal(t, 6, WeekdayRank("Sunday"))
	require.Equal(t, 7, WeekdayRank("Funday"))
}

func TestParseWeekday_ExactMatch(t *testing.T) {
	d, ok := ParseWeekday("Wednesday")
	require.True(t, ok)
	require.Equal(t, time.Wednesday, d)

	_, ok = ParseWeekday("wednesday")
	require.False(t, ok)
	_, ok = ParseWeekday("Funday")
	require.False(t, ok)
}

func TestNormalizeClock(t *testing.T) {
	cases := map[string]string{
		"9:05":  "09:05",
		"09:05": "09:05",
		"0:00":  "00:00",
		"23:59": "23:59",
		"14:45": "14:45",
	}
	for in, want := range cases {
		got, err := NormalizeClock(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"25:99", "24:00", "12:60", "1245", "", "12:5", "ab:cd", " 12:45"} {
		_, err := NormalizeClock(bad)
		require.Error(t, err, bad)
		require.False(t, IsClock(bad), bad)
	}
}

func TestDate_UsesLocationCivilDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:30 UTC on the 23rd is still the evening of the 22nd in New York.
	instant := time.Date(2025, 9, 23, 2, 30, 0, 0, time.UTC)

	require.Equal(t, time.Date(2025, 9, 22, 0, 0, 0, 0, time.UTC), Date(instant, ny))
	require.Equal(t, time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC), Date(instant, time.UTC))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-09-22")
	require.NoError(t, err)
	require.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("22/09/2025")
	require.Error(t, err)
}

func TestPaginate_Basic(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	page := Paginate(items, 1, 5)

	require.Len(t, page.Items, 5)
	require.False(t, page.HasPrev)
	require.True(t, page.HasNext)
	require.Equal(t, len(items), page.Total)
}

func TestPaginate_LastPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	page := Paginate(items, 2, 4)

	require.Equal(t, []int{5, 6}, page.Items)
	require.True(t, page.HasPrev)
	require.False(t, page.HasNext)
}

func TestPaginate_EmptyAndDefaults(t *testing.T) {
	var items []int
	page := Paginate(items, 0, 0)

	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
	require.Equal(t, 1, page.Page)
	require.Equal(t, DefaultPageSize, page.PageSize)
	require.False(t, page.HasNext)
	require.False(t, page.HasPrev)
}

func TestPaginate_ClampsPageSize(t *testing.T) {
	page := Paginate(make([]int, 500), 1, 10_000)
	require.Equal(t, MaxPageSize, page.PageSize)
	require.Len(t, page.Items, MaxPageSize)
}

func TestPaginate_HugePage(t *testing.T) {
	page := Paginate([]int{1, 2, 3}, math.MaxInt64/100, MaxPageSize)
	require.Empty(t, page.Items)
	require.NotNil(t, page.Items)
	require.Equal(t, 3, page.Total)
	require.False(t, page.HasNext)
	require.True(t, page.HasPrev)

	page = Paginate([]int{1, 2, 3}, math.MaxInt, 1)
	require.Empty(t, page.Items)
}
