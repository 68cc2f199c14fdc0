package scheduler

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 6, 1, h, m, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	t.Parallel()
	w, err := ParseWindow("07:30-00:30")
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if w.Start != (Clock{7, 30}) || w.End != (Clock{0, 30}) {
		t.Fatalf("unexpected window %+v", w)
	}
	if got := w.String(); got != "07:30-00:30" {
		t.Fatalf("String() = %q", got)
	}

	if w, err := ParseWindow("   "); err != nil || w != nil {
		t.Fatalf("blank window should be (nil, nil), got (%v, %v)", w, err)
	}

	for _, bad := range []string{"0730-0830", "07:30", "25:00-01:00", "07:60-08:00", "a:b-c:d"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestWindowContainsSimpleRange(t *testing.T) {
	t.Parallel()
	w := TimeWindow{Start: Clock{7, 30}, End: Clock{7, 35}}
	tests := []struct {
		t    time.Time
		want bool
	}{
		{at(7, 29), false},
		{at(7, 30), true},
		{at(7, 34), true},
		{at(7, 35), false}, // half-open end
		{at(12, 0), false},
		{at(0, 0), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Fatalf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestWindowContainsWrapsMidnight(t *testing.T) {
	t.Parallel()
	w := TimeWindow{Start: Clock{7, 30}, End: Clock{0, 30}}
	tests := []struct {
		t    time.Time
		want bool
	}{
		{at(7, 30), true},
		{at(12, 0), true},
		{at(23, 59), true},
		{at(0, 0), true},
		{at(0, 30), true}, // inclusive end in the wrap case
		{at(0, 31), false},
		{at(3, 0), false},
		{at(7, 29), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Fatalf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestWindowWrapProperty(t *testing.T) {
	t.Parallel()
	// For start > end: true for every t in [start, 24:00) and [00:00, end],
	// false strictly between end and start.
	w := TimeWindow{Start: Clock{22, 0}, End: Clock{6, 0}}
	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 15, 59} {
			cur := h*60 + m
			want := cur >= 22*60 || cur <= 6*60
			if got := w.Contains(at(h, m)); got != want {
				t.Fatalf("Contains(%02d:%02d) = %v, want %v", h, m, got, want)
			}
		}
	}
}

func TestWindowDegenerateAlwaysOpen(t *testing.T) {
	t.Parallel()
	w := TimeWindow{Start: Clock{8, 0}, End: Clock{8, 0}}
	for _, tm := range []time.Time{at(0, 0), at(8, 0), at(23, 59)} {
		if !w.Contains(tm) {
			t.Fatalf("degenerate window should always contain %s", tm.Format("15:04"))
		}
	}
}
