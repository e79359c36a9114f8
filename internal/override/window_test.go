package override

import (
	"testing"
	"time"

	"heating_bridge/internal/models"
)

// localDate builds a local wall-clock instant on a known weekday.
// 2026-01-05 is a Monday.
func localDate(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.Local)
}

func TestIsWithinWindow_SameDay(t *testing.T) {
	t.Parallel()

	window := models.TimeWindow{
		Start: "08:00",
		End:   "17:30",
		Days:  []string{"monday", "wednesday"},
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"inside on matching day", localDate(5, 12, 0), true},
		{"at start boundary", localDate(5, 8, 0), true},
		{"at end boundary", localDate(5, 17, 30), true},
		{"before start", localDate(5, 7, 59), false},
		{"after end", localDate(5, 17, 31), false},
		{"inside but wrong day", localDate(6, 12, 0), false}, // Tuesday
		{"inside on second listed day", localDate(7, 12, 0), true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsWithinWindow(window, tc.now); got != tc.want {
				t.Errorf("IsWithinWindow(%v): got %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestIsWithinWindow_MidnightCrossing(t *testing.T) {
	t.Parallel()

	// Monday 23:00 through Tuesday 06:00; the tail belongs to Monday.
	window := models.TimeWindow{
		Start: "23:00",
		End:   "06:00",
		Days:  []string{"monday"},
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"monday late evening", localDate(5, 23, 30), true},
		{"tuesday early morning attributed to monday", localDate(6, 2, 0), true},
		{"tuesday mid morning", localDate(6, 10, 0), false},
		{"sunday late evening not covered", localDate(4, 23, 30), false},
		{"tuesday at end boundary", localDate(6, 6, 0), true},
		{"monday at start boundary", localDate(5, 23, 0), true},
		{"monday gap between segments", localDate(5, 12, 0), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsWithinWindow(window, tc.now); got != tc.want {
				t.Errorf("IsWithinWindow(%v): got %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestIsWithinWindow_MalformedTimes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		window models.TimeWindow
	}{
		{"missing colon", models.TimeWindow{Start: "0800", End: "17:00", Days: []string{"monday"}}},
		{"hour out of range", models.TimeWindow{Start: "25:00", End: "17:00", Days: []string{"monday"}}},
		{"minute out of range", models.TimeWindow{Start: "08:61", End: "17:00", Days: []string{"monday"}}},
		{"empty", models.TimeWindow{Days: []string{"monday"}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if IsWithinWindow(tc.window, localDate(5, 12, 0)) {
				t.Error("malformed window should never match")
			}
		})
	}
}

func TestIsOverrideAllowed(t *testing.T) {
	t.Parallel()

	window := models.TimeWindow{
		Start: "08:00",
		End:   "17:00",
		Days:  []string{"monday"},
	}

	cases := []struct {
		name  string
		room  string
		rules []models.OverrideRule
		now   time.Time
		want  bool
	}{
		{
			name: "no rules at all",
			room: "Kitchen",
			now:  localDate(5, 12, 0),
			want: true,
		},
		{
			name: "no matching rule",
			room: "Kitchen",
			rules: []models.OverrideRule{
				{Room: "Nursery", BlockOverrides: true},
			},
			now:  localDate(5, 12, 0),
			want: true,
		},
		{
			name: "rule with blocking disabled",
			room: "Kitchen",
			rules: []models.OverrideRule{
				{Room: "Kitchen", BlockOverrides: false, Windows: []models.TimeWindow{window}},
			},
			now:  localDate(5, 12, 0),
			want: true,
		},
		{
			name: "blocking enabled with no windows blocks always",
			room: "Kitchen",
			rules: []models.OverrideRule{
				{Room: "Kitchen", BlockOverrides: true},
			},
			now:  localDate(5, 12, 0),
			want: false,
		},
		{
			name: "blocked inside window",
			room: "Kitchen",
			rules: []models.OverrideRule{
				{Room: "Kitchen", BlockOverrides: true, Windows: []models.TimeWindow{window}},
			},
			now:  localDate(5, 12, 0),
			want: false,
		},
		{
			name: "allowed outside window",
			room: "Kitchen",
			rules: []models.OverrideRule{
				{Room: "Kitchen", BlockOverrides: true, Windows: []models.TimeWindow{window}},
			},
			now:  localDate(5, 18, 0),
			want: true,
		},
		{
			name: "room match is case-insensitive",
			room: "kitchen",
			rules: []models.OverrideRule{
				{Room: "Kitchen", BlockOverrides: true},
			},
			now:  localDate(5, 12, 0),
			want: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsOverrideAllowed(tc.room, tc.rules, tc.now); got != tc.want {
				t.Errorf("IsOverrideAllowed(%q): got %v, want %v", tc.room, got, tc.want)
			}
		})
	}
}
