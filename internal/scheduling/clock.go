package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// MinuteOfDay is a clinic-local time of day in minutes since midnight.
// Schedule windows and appointment times are clock times, not instants,
// so they are kept free of any timezone handling.
type MinuteOfDay int

var (
	ErrBadClock = errors.New("time must be HH:MM")
	ErrBadDate  = errors.New("date must be YYYY-MM-DD")
)

// ParseClock parses a strict HH:MM 24h clock time.
func ParseClock(s string) (MinuteOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	return MinuteOfDay(t.Hour()*60 + t.Minute()), nil
}

func (m MinuteOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) Add(d time.Duration) MinuteOfDay {
	return m + MinuteOfDay(d/time.Minute)
}

// ParseDate parses a strict YYYY-MM-DD clinic-local civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format("2006-01-02")
}

// Weekday maps a date to the schedule weekday numbering, Monday=0 .. Sunday=6.
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}
