package services

import "time"

// Daily quotas and weekly XP roll over at 00:00 UTC (weeks start Monday).

// DayStart returns 00:00:00 UTC of t's UTC calendar day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the most recent Monday 00:00 UTC at or before t.
func WeekStart(t time.Time) time.Time {
	day := DayStart(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

func NextDailyReset(now time.Time) time.Time {
	return DayStart(now).AddDate(0, 0, 1)
}

func NextWeeklyReset(now time.Time) time.Time {
	return WeekStart(now).AddDate(0, 0, 7)
}

// DailyResetDue reports whether the UTC day boundary was crossed since last.
// A user that was never reset is always due.
func DailyResetDue(last *time.Time, now time.Time) bool {
	return last == nil || DayStart(*last).Before(DayStart(now))
}

func WeeklyResetDue(last *time.Time, now time.Time) bool {
	return last == nil || WeekStart(*last).Before(WeekStart(now))
}

// QuotaState is the subset of a user the quota policy reads and writes.
type QuotaState struct {
	Premium        bool
	DailySpotLimit int
	SpotsRemaining int
	LastDailyReset *time.Time
}

// ApplyDailyReset returns the post-reset state and whether a reset happened.
// Premium users only get the bookkeeping timestamp refreshed.
func ApplyDailyReset(s QuotaState, now time.Time) (QuotaState, bool) {
	if !DailyResetDue(s.LastDailyReset, now) {
		return s, false
	}
	t := now.UTC()
	s.LastDailyReset = &t
	if !s.Premium {
		s.SpotsRemaining = s.DailySpotLimit
	}
	return s, true
}

// CanSpend reports whether a non-first detection of a physical spot action may be
// recorded: either quota is left, or a unit was spent within grace (same action).
func CanSpend(s QuotaState, lastSpend *time.Time, grace time.Duration, now time.Time) bool {
	if s.Premium || s.SpotsRemaining > 0 {
		return true
	}
	return lastSpend != nil && now.Sub(*lastSpend) <= grace
}
