// Package override decides whether a manual setpoint override is
// currently permitted for a room, based on configured blocking
// windows. Evaluation is pure wall-clock arithmetic with no I/O.
package override

import (
	"strconv"
	"strings"
	"time"

	"heating_bridge/internal/models"
)

// IsWithinWindow reports whether now falls inside the window, bounds
// inclusive. A window whose end precedes its start crosses midnight:
// the segment after midnight belongs to the previous day's occurrence,
// so it matches when yesterday's weekday is in the window's day set.
func IsWithinWindow(w models.TimeWindow, now time.Time) bool {
	start, ok := parseMinuteOfDay(w.Start)
	if !ok {
		return false
	}
	end, ok := parseMinuteOfDay(w.End)
	if !ok {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	today := now.Weekday()

	if end >= start {
		return minute >= start && minute <= end && hasDay(w.Days, today)
	}

	// Midnight-crossing: tail of yesterday's occurrence, then today's head.
	if minute <= end {
		return hasDay(w.Days, yesterday(today))
	}
	if minute >= start {
		return hasDay(w.Days, today)
	}
	return false
}

// IsOverrideAllowed applies rule precedence for a room: no matching
// rule or blocking disabled always permits; blocking enabled with no
// windows blocks permanently; otherwise blocked only inside a window.
func IsOverrideAllowed(room string, rules []models.OverrideRule, now time.Time) bool {
	for _, rule := range rules {
		if !strings.EqualFold(rule.Room, room) {
			continue
		}
		if !rule.BlockOverrides {
			return true
		}
		if len(rule.Windows) == 0 {
			return false
		}
		for _, w := range rule.Windows {
			if IsWithinWindow(w, now) {
				return false
			}
		}
		return true
	}
	return true
}

// parseMinuteOfDay converts "HH:MM" to minutes since midnight.
func parseMinuteOfDay(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func hasDay(days []string, d time.Weekday) bool {
	name := strings.ToLower(d.String())
	for _, day := range days {
		if strings.ToLower(day) == name {
			return true
		}
	}
	return false
}

func yesterday(d time.Weekday) time.Weekday {
	return (d + 6) % 7
}
