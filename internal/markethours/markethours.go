// Package markethours knows the Tokyo Stock Exchange trading calendar:
// session times in JST, weekends and JPX market holidays.
package markethours

import (
	"fmt"
	"time"
)

// JST is Japan Standard Time (UTC+9, no daylight saving).
var JST = time.FixedZone("JST", 9*3600)

// Session times in JST. The morning and afternoon sessions are separated
// by a lunch break.
const (
	OpenHour       = 9
	OpenMinute     = 0
	LunchStartHour = 11
	LunchStartMin  = 30
	LunchEndHour   = 12
	LunchEndMinute = 30
	CloseHour      = 15
	CloseMinute    = 30
)

// IsMarketOpen returns true if t falls within TSE continuous trading
// (9:00–11:30 and 12:30–15:30 JST, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	jst := t.In(JST)
	if !IsTradingDay(jst) {
		return false
	}
	hm := jst.Hour()*60 + jst.Minute()
	morning := hm >= OpenHour*60+OpenMinute && hm < LunchStartHour*60+LunchStartMin
	afternoon := hm >= LunchEndHour*60+LunchEndMinute && hm < CloseHour*60+CloseMinute
	return morning || afternoon
}

// IsWeekday returns true if t is Mon–Fri in JST.
func IsWeekday(t time.Time) bool {
	wd := t.In(JST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	jst := t.In(JST)
	return IsWeekday(jst) && !IsHoliday(jst)
}

// NextOpen returns the next session open (9:00 JST on a trading day).
// If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	jst := t.In(JST)

	todayOpen := time.Date(jst.Year(), jst.Month(), jst.Day(), OpenHour, OpenMinute, 0, 0, JST)
	if jst.Before(todayOpen) && IsTradingDay(jst) {
		return todayOpen
	}

	d := jst.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ { // Golden Week and New Year can span a week
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, JST)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(jst.Year(), jst.Month(), jst.Day()+1, OpenHour, OpenMinute, 0, 0, JST)
}

// LastTradingDay returns the most recent trading day on or before t,
// truncated to midnight JST.
func LastTradingDay(t time.Time) time.Time {
	d := t.In(JST)
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, JST)
	for i := 0; i < 14 && !IsTradingDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// TodayClose returns today's close time (15:30 JST).
func TodayClose(t time.Time) time.Time {
	jst := t.In(JST)
	return time.Date(jst.Year(), jst.Month(), jst.Day(), CloseHour, CloseMinute, 0, 0, JST)
}

// TimeUntilClose returns the duration until today's close.
// Returns 0 if the market is already closed.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t.In(JST))
	if d < 0 {
		return 0
	}
	return d
}

// TimeUntilOpen returns the duration until the next session open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t.In(JST))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open: closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	jst := next.In(JST)
	return fmt.Sprintf("Market Closed: opens %s %s (%s)",
		jst.Weekday().String()[:3], jst.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
