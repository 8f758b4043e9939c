package common

import "time"

// Clamp01 bounds v to the [0, 1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SafeRatio returns num/den, or 0 when den is zero.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Daypart is a contiguous, non-overlapping local-time window of the day.
type Daypart string

const (
	DaypartMorning   Daypart = "morning"   // 06:00-12:00
	DaypartAfternoon Daypart = "afternoon" // 12:00-17:00
	DaypartEvening   Daypart = "evening"   // 17:00-21:00
	DaypartNight     Daypart = "night"     // 21:00-06:00
)

// Dayparts lists all dayparts in chronological order starting at morning.
func Dayparts() []Daypart {
	return []Daypart{DaypartMorning, DaypartAfternoon, DaypartEvening, DaypartNight}
}

// DaypartOf buckets t into its daypart using t's own location.
func DaypartOf(t time.Time) Daypart {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return DaypartMorning
	case h >= 12 && h < 17:
		return DaypartAfternoon
	case h >= 17 && h < 21:
		return DaypartEvening
	default:
		return DaypartNight
	}
}
