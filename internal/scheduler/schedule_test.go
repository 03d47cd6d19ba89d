package scheduler

import (
	"testing"
	"time"
)

func TestParseScheduleLocal(t *testing.T) {
	sched, err := ParseSchedule("30 6 * * *", false)
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	from := time.Date(2024, time.June, 14, 5, 0, 0, 0, time.Local)
	next := sched.Next(from)
	want := time.Date(2024, time.June, 14, 6, 30, 0, 0, time.Local)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestParseScheduleUTC(t *testing.T) {
	sched, err := ParseSchedule("0 12 * * *", true)
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	from := time.Date(2024, time.June, 14, 11, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	if !next.UTC().Equal(want) {
		t.Errorf("next = %v, want %v", next.UTC(), want)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	cases := []string{
		"",
		"not a cron",
		"61 * * * *",
		"* * * *",          // four fields
		"* * * * * *",      // six fields
	}
	for _, expr := range cases {
		if _, err := ParseSchedule(expr, false); err == nil {
			t.Errorf("ParseSchedule(%q) accepted invalid expression", expr)
		}
	}
}

func TestParseScheduleEveryMinute(t *testing.T) {
	sched, err := ParseSchedule("* * * * *", false)
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	from := time.Date(2024, time.June, 14, 5, 0, 30, 0, time.Local)
	next := sched.Next(from)
	if got := next.Sub(from); got > time.Minute {
		t.Errorf("next occurrence %v away, want within a minute", got)
	}
}
