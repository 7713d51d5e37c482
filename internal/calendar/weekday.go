package calendar

import (
	"fmt"
	"regexp"
	"time"
)

// Формат дат рейсов по всему трекеру.
const ISODate = "2006-01-02"

// Дни недели по порядку, с понедельника.
var Weekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

var weekdayByName = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

// H:MM и HH:MM, 24-часовой формат
var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseWeekday ищет английское название дня недели, точное совпадение.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayByName[name]
	return d, ok
}

// WeekdayRank: понедельник 0, воскресенье 6.
// Неизвестные названия уходят в конец.
func WeekdayRank(name string) int {
	d, ok := weekdayByName[name]
	if !ok {
		return len(Weekdays)
	}
	return (int(d) + 6) % 7
}

// IsClock проверяет, что s корректное время H:MM или HH:MM.
func IsClock(s string) bool {
	return clockPattern.MatchString(s)
}

// NormalizeClock проверяет s и дополняет час нулём: "9:05" -> "09:05".
func NormalizeClock(s string) (string, error) {
	if !clockPattern.MatchString(s) {
		return "", fmt.Errorf("invalid clock time %q", s)
	}
	if len(s) == 4 {
		return "0" + s, nil
	}
	return s, nil
}

// Date берёт календарную дату t в loc и возвращает полночь UTC этой даты.
// Даты рейсов всегда храним как полночь UTC, чтобы значение
// не зависело от таймзоны сервера.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate разбирает ISO-дату в полночь UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(ISODate, s, time.UTC)
}
