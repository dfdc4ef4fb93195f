package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK - Wall-clock time of day parsed from 12-hour notation
// =============================================================================

// Clock is a time of day in 24-hour components.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "9:00 AM" style text. 12 AM is hour 0, 12 PM stays 12.
func ParseClock(text string) (Clock, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return Clock{}, fmt.Errorf("invalid clock %q: want \"H:MM AM|PM\"", text)
	}
	hm := strings.SplitN(fields[0], ":", 2)
	if len(hm) != 2 {
		return Clock{}, fmt.Errorf("invalid clock %q: missing minutes", text)
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return Clock{}, fmt.Errorf("invalid clock %q: hour must be 1-12", text)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || len(hm[1]) != 2 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid clock %q: minute must be 00-59", text)
	}

	switch strings.ToUpper(fields[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return Clock{}, fmt.Errorf("invalid clock %q: meridiem must be AM or PM", text)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// MustParseClock panics on invalid input. Only for constants and tests.
func MustParseClock(text string) Clock {
	c, err := ParseClock(text)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	period := "AM"
	if c.Hour >= 12 {
		period = "PM"
	}
	h := c.Hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute, period)
}

// On returns the instant of c on date d in loc.
func (c Clock) On(d Date, loc *time.Location) time.Time {
	base := d.Time(loc)
	return time.Date(base.Year(), base.Month(), base.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// FormatInstant renders t as "2006-01-02 3:04 PM" in loc.
func FormatInstant(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 3:04 PM")
}

// =============================================================================
// SCHEDULE - Official arrival/departure thresholds in one explicit zone
// =============================================================================

// Schedule carries the official thresholds and the reference zone used for
// both date keys and threshold comparisons.
type Schedule struct {
	Arrival   Clock
	Departure Clock
	Location  *time.Location

	// StrictDeparture makes the incremental updater refuse a departure scan
	// at or after the departure threshold.
	StrictDeparture bool
}

// DefaultSchedule is 9:00 AM to 5:00 PM in UTC.
func DefaultSchedule() Schedule {
	return Schedule{
		Arrival:   Clock{Hour: 9},
		Departure: Clock{Hour: 17},
		Location:  time.UTC,
	}
}

// Validate rejects schedules whose departure does not follow arrival.
func (s Schedule) Validate() error {
	a := s.Arrival.Hour*60 + s.Arrival.Minute
	d := s.Departure.Hour*60 + s.Departure.Minute
	if d <= a {
		return fmt.Errorf("departure %s must be after arrival %s", s.Departure, s.Arrival)
	}
	return nil
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Zone returns the schedule's reference zone.
func (s Schedule) Zone() *time.Location { return s.location() }

// DateKey buckets t into its calendar date in the schedule's zone.
func (s Schedule) DateKey(t time.Time) Date {
	return Date(t.In(s.location()).Format(dateLayout))
}

// ArrivalOn is the arrival threshold instant of d.
func (s Schedule) ArrivalOn(d Date) time.Time { return s.Arrival.On(d, s.location()) }

// DepartureOn is the departure threshold instant of d.
func (s Schedule) DepartureOn(d Date) time.Time { return s.Departure.On(d, s.location()) }

// IsLate reports an arrival strictly after the arrival threshold of its day.
func (s Schedule) IsLate(t time.Time) bool {
	return t.After(s.ArrivalOn(s.DateKey(t)))
}

// Deduction is the hours short of the departure threshold, zero when leaving
// at or after it.
func (s Schedule) Deduction(departure time.Time) decimal.Decimal {
	threshold := s.DepartureOn(s.DateKey(departure))
	if !departure.Before(threshold) {
		return decimal.Zero
	}
	return nonNegative(HoursBetween(departure, threshold))
}

// =============================================================================
// HOUR ARITHMETIC
// =============================================================================

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// HoursBetween returns b - a in hours rounded to two places. The result may be
// negative.
func HoursBetween(a, b time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(b.Sub(a))).Div(nanosPerHour).Round(2)
}

// WorkedHours is the time between arrival and departure, zero when either is
// missing or departure does not follow arrival.
func WorkedHours(arrival, departure *time.Time) decimal.Decimal {
	if arrival == nil || departure == nil || !departure.After(*arrival) {
		return decimal.Zero
	}
	return HoursBetween(*arrival, *departure)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
