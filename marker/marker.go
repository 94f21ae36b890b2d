// Package marker turns raw marker tables into resolved markers and
// correlates IPC markers across threads.
package marker

import (
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

var (
	// ErrMissingTime is returned when a phase requires a timestamp the row lacks.
	ErrMissingTime = errs.Errorf("missing required marker time")
	// ErrUnknownPhase is returned for phases other than the four known ones.
	ErrUnknownPhase = errs.Errorf("unknown marker phase")
	// ErrIPCReceiveTransferStart is returned for a receiving IPC marker in the transferStart phase.
	ErrIPCReceiveTransferStart = errs.Errorf("receiving IPC marker can't be in the transferStart phase")
)

// Marker is a resolved marker. An invalid End means an instant event.
type Marker struct {
	Start    profile.Time
	End      profile.NullTime
	Name     string
	Category int
	// ThreadID is the thread the marker is attributed to, profile.None if unset.
	ThreadID int
	Data     profile.Payload
	// Incomplete is set when the start or end lies outside the captured range.
	Incomplete bool
}

func (m *Marker) IsInstant() bool { return !m.End.Valid }

// DerivedMarkers holds resolved markers and, for each of them, the raw
// rows it was built from.
type DerivedMarkers struct {
	Markers    []Marker
	RawIndexes [][]int
}

func (d *DerivedMarkers) add(raw []int, m Marker) {
	d.Markers = append(d.Markers, m)
	d.RawIndexes = append(d.RawIndexes, raw)
}

func (d *DerivedMarkers) Len() int { return len(d.Markers) }
