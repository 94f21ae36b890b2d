package profile

import (
	"encoding/json"
	"math"
)

// Time in milliseconds.
type Time float64

func (t Time) Min(b Time) Time {
	if t < b {
		return t
	}
	return b
}

func (t Time) Max(b Time) Time {
	if t > b {
		return t
	}
	return b
}

// NullTime is a Time that may be missing.
type NullTime struct {
	Time  Time
	Valid bool
}

func Some(t Time) NullTime { return NullTime{Time: t, Valid: true} }

func (t NullTime) Or(def Time) Time {
	if t.Valid {
		return t.Time
	}
	return def
}

func (t NullTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(float64(t.Time))
}

func (t *NullTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = NullTime{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Some(Time(v))
	return nil
}

type TimeRange struct {
	Start Time `json:"start"`
	End   Time `json:"end"`
}

var InvalidRange = TimeRange{
	Start: Time(math.Inf(1)),
	End:   Time(math.Inf(-1)),
}

func (a TimeRange) Duration() Time {
	return a.End - a.Start
}

func (a TimeRange) IsValid() bool { return a.Start <= a.End }

func (a TimeRange) Less(b TimeRange) bool {
	if a.Start == b.Start {
		return a.End < b.End
	}
	return a.Start < b.Start
}

func (a TimeRange) Expand(b TimeRange) TimeRange {
	return TimeRange{
		Start: a.Start.Min(b.Start),
		End:   a.End.Max(b.End),
	}
}

func (a TimeRange) ExpandTime(t Time) TimeRange {
	return a.Expand(TimeRange{Start: t, End: t})
}
