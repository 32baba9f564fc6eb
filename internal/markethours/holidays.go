package markethours

import "time"

// JPX market holidays (national holidays plus the exchange's year-end
// closure), from the JPX published calendar.
var jpxHolidays = []struct {
	year  int
	month time.Month
	day   int
}{
	{2026, time.January, 1},    // New Year
	{2026, time.January, 2},    // Exchange closure
	{2026, time.January, 12},   // Coming of Age Day
	{2026, time.February, 11},  // National Foundation Day
	{2026, time.February, 23},  // Emperor's Birthday
	{2026, time.March, 20},     // Vernal Equinox Day
	{2026, time.April, 29},     // Showa Day
	{2026, time.May, 4},        // Greenery Day
	{2026, time.May, 5},        // Children's Day
	{2026, time.May, 6},        // Constitution Day (observed)
	{2026, time.July, 20},      // Marine Day
	{2026, time.August, 11},    // Mountain Day
	{2026, time.September, 21}, // Respect for the Aged Day
	{2026, time.September, 22}, // Citizens' Holiday
	{2026, time.September, 23}, // Autumnal Equinox Day
	{2026, time.October, 12},   // Sports Day
	{2026, time.November, 3},   // Culture Day
	{2026, time.November, 23},  // Labor Thanksgiving Day
	{2026, time.December, 31},  // Exchange closure
	{2027, time.January, 1},    // New Year
	{2027, time.January, 11},   // Coming of Age Day
	{2027, time.February, 11},  // National Foundation Day
	{2027, time.February, 23},  // Emperor's Birthday
	{2027, time.March, 22},     // Vernal Equinox Day (observed)
	{2027, time.April, 29},     // Showa Day
	{2027, time.May, 3},        // Constitution Day
	{2027, time.May, 4},        // Greenery Day
	{2027, time.May, 5},        // Children's Day
	{2027, time.July, 19},      // Marine Day
	{2027, time.August, 11},    // Mountain Day
	{2027, time.September, 20}, // Respect for the Aged Day
	{2027, time.September, 23}, // Autumnal Equinox Day
	{2027, time.October, 11},   // Sports Day
	{2027, time.November, 3},   // Culture Day
	{2027, time.November, 23},  // Labor Thanksgiving Day
	{2027, time.December, 31},  // Exchange closure
	{2028, time.January, 3},    // Exchange closure
	{2028, time.January, 10},   // Coming of Age Day
}

// HolidayCalendarEnd is the last year the holiday table fully covers.
const HolidayCalendarEnd = 2027

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(jpxHolidays))
	for _, h := range jpxHolidays {
		holidaySet[dateKey(h.year, h.month, h.day)] = true
	}
}

// IsHoliday returns true if the date (in JST) is a JPX holiday.
func IsHoliday(t time.Time) bool {
	jst := t.In(JST)
	return holidaySet[dateKey(jst.Year(), jst.Month(), jst.Day())]
}

// HolidaysKnown reports whether t falls inside the holiday table. Past
// HolidayCalendarEnd, IsHoliday only knows early-January dates.
func HolidaysKnown(t time.Time) bool {
	return t.In(JST).Year() <= HolidayCalendarEnd
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, JST).Format("2006-01-02")
}
