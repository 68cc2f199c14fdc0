package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// TimeWindow gates whether a job's body executes on a given firing.
//
// When Start > End the window wraps past midnight: t is in window when
// t >= Start or t <= End. Otherwise t is in window when Start <= t < End.
// Start == End degenerates to an always-open window.
type TimeWindow struct {
	Start Clock
	End   Clock
}

// Contains evaluates the window against t's clock time.
// The end bound is inclusive in the wrap case, mirroring the "or t <=
// end" semantics the window bounds were written for.
func (w TimeWindow) Contains(t time.Time) bool {
	cur := t.Hour()*60 + t.Minute()
	start := w.Start.minutes()
	end := w.End.minutes()

	switch {
	case start == end:
		return true
	case start > end: // wraps past midnight
		return cur >= start || cur <= end
	default:
		return cur >= start && cur < end
	}
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(raw string) (*TimeWindow, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid window %q, expected HH:MM-HH:MM", raw)
	}
	start, err := parseHHMM(parts[0])
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	end, err := parseHHMM(parts[1])
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	return &TimeWindow{Start: start, End: end}, nil
}

func parseHHMM(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}
