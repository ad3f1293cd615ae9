package services

import "time"

// StreakState is the streak-related subset of a user.
type StreakState struct {
	Current  int
	Longest  int
	LastSpot *time.Time
}

// UpdateStreak records a spot at now. Calls within the same UTC day leave the counters
// unchanged, so it is safe to invoke from more than one path.
func UpdateStreak(s StreakState, now time.Time) StreakState {
	today := DayStart(now)
	switch {
	case s.LastSpot == nil:
		s.Current = 1
	case !DayStart(*s.LastSpot).Before(today):
		if s.Current < 1 {
			s.Current = 1
		}
	case DayStart(*s.LastSpot).Equal(today.AddDate(0, 0, -1)):
		s.Current++
	default:
		s.Current = 1
	}
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	t := now.UTC()
	s.LastSpot = &t
	return s
}

// LapseStreak zeroes the current streak when the last spot is older than yesterday.
// Used on read paths; it never records activity.
func LapseStreak(s StreakState, now time.Time) (StreakState, bool) {
	if s.LastSpot == nil || s.Current == 0 {
		return s, false
	}
	yesterday := DayStart(now).AddDate(0, 0, -1)
	if DayStart(*s.LastSpot).Before(yesterday) {
		s.Current = 0
		return s, true
	}
	return s, false
}
