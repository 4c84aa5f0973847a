package telemetry

import (
	"time"

	"github.com/teranos/skytrace/errors"
)

// Precision is the resolution of timestamps as persisted by the store
// (BSON datetimes carry milliseconds).
const Precision = time.Millisecond

// TimeRange selects records with Start <= timestamp < End.
// An inverted range is not an error; it simply matches nothing.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseTimeRange parses RFC3339 start and end values.
// Malformed input yields an error marked with errors.ErrInvalidArgument.
func ParseTimeRange(start, end string) (TimeRange, error) {
	s, err := ParseTimestamp(start)
	if err != nil {
		return TimeRange{}, errors.Wrap(err, "start")
	}
	e, err := ParseTimestamp(end)
	if err != nil {
		return TimeRange{}, errors.Wrap(err, "end")
	}
	return TimeRange{Start: s, End: e}, nil
}

// ParseTimestamp parses an RFC3339 timestamp (fractional seconds allowed)
// and normalizes it to UTC at store precision.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.NewInvalidArgumentf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.WithHint(
			errors.NewInvalidArgumentf("timestamp %q is not RFC3339", value),
			"use a value like 2022-11-03T12:57:18.123Z",
		)
	}
	return Normalize(t), nil
}

// Normalize converts t to UTC and truncates it to store precision
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// Contains reports whether t falls inside the half-open range
func (r TimeRange) Contains(t time.Time) bool {
	t = Normalize(t)
	return !t.Before(r.Start) && t.Before(r.End)
}

// Empty reports whether no timestamp can satisfy the range
func (r TimeRange) Empty() bool {
	return !r.Start.Before(r.End)
}

// Duration returns End - Start (negative for inverted ranges)
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// String formats the range in interval notation
func (r TimeRange) String() string {
	return "[" + r.Start.Format(time.RFC3339Nano) + ", " + r.End.Format(time.RFC3339Nano) + ")"
}
