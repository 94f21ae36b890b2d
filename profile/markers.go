package profile

import (
	"fmt"

	"github.com/zeebo/errs/v2"
)

// None marks a missing table reference.
const None = -1

type Phase uint8

const (
	Instant       = Phase(0)
	Interval      = Phase(1)
	IntervalStart = Phase(2)
	IntervalEnd   = Phase(3)
)

func (p Phase) String() string {
	switch p {
	case Instant:
		return "Instant"
	case Interval:
		return "Interval"
	case IntervalStart:
		return "IntervalStart"
	case IntervalEnd:
		return "IntervalEnd"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// RawMarker is a single row of a RawMarkerTable.
type RawMarker struct {
	Name      StringIndex
	StartTime NullTime
	EndTime   NullTime
	Phase     Phase
	Category  int
	Data      Payload
	// ThreadID attributes the marker to another thread, None otherwise.
	ThreadID int
}

// RawMarkerTable is the columnar marker table of a thread.
// Every column has Length entries; ThreadID is either nil or full.
type RawMarkerTable struct {
	Name      []StringIndex
	StartTime []NullTime
	EndTime   []NullTime
	Phase     []Phase
	Category  []int
	Data      []Payload
	ThreadID  []int
	Length    int
}

func (t *RawMarkerTable) Row(i int) RawMarker {
	m := RawMarker{
		Name:      t.Name[i],
		StartTime: t.StartTime[i],
		EndTime:   t.EndTime[i],
		Phase:     t.Phase[i],
		Category:  t.Category[i],
		Data:      t.Data[i],
		ThreadID:  None,
	}
	if t.ThreadID != nil {
		m.ThreadID = t.ThreadID[i]
	}
	return m
}

func (t *RawMarkerTable) Append(m RawMarker) int {
	if m.ThreadID != None && t.ThreadID == nil {
		t.ThreadID = make([]int, t.Length, t.Length+1)
		for i := range t.ThreadID {
			t.ThreadID[i] = None
		}
	}

	t.Name = append(t.Name, m.Name)
	t.StartTime = append(t.StartTime, m.StartTime)
	t.EndTime = append(t.EndTime, m.EndTime)
	t.Phase = append(t.Phase, m.Phase)
	t.Category = append(t.Category, m.Category)
	t.Data = append(t.Data, m.Data)
	if t.ThreadID != nil {
		t.ThreadID = append(t.ThreadID, m.ThreadID)
	}
	t.Length++
	return t.Length - 1
}

// Clone returns a table with copied columns; payloads are shared.
func (t *RawMarkerTable) Clone() *RawMarkerTable {
	c := &RawMarkerTable{
		Name:      append([]StringIndex(nil), t.Name...),
		StartTime: append([]NullTime(nil), t.StartTime...),
		EndTime:   append([]NullTime(nil), t.EndTime...),
		Phase:     append([]Phase(nil), t.Phase...),
		Category:  append([]int(nil), t.Category...),
		Data:      append([]Payload(nil), t.Data...),
		Length:    t.Length,
	}
	if t.ThreadID != nil {
		c.ThreadID = append([]int(nil), t.ThreadID...)
	}
	return c
}

func (t *RawMarkerTable) Validate() error {
	check := func(column string, n int) error {
		if n != t.Length {
			return errs.Errorf("marker column %q has %d entries, expected %d", column, n, t.Length)
		}
		return nil
	}
	for _, err := range []error{
		check("name", len(t.Name)),
		check("startTime", len(t.StartTime)),
		check("endTime", len(t.EndTime)),
		check("phase", len(t.Phase)),
		check("category", len(t.Category)),
		check("data", len(t.Data)),
	} {
		if err != nil {
			return err
		}
	}
	if t.ThreadID != nil {
		return check("threadId", len(t.ThreadID))
	}
	return nil
}
