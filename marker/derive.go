package marker

import (
	"sort"

	"github.com/zeebo/errs/v2"
	"golang.org/x/exp/maps"

	"loov.dev/profileview/profile"
)

// DeriveMarkers resolves the raw markers of a thread in a single pass.
//
// Split intervals are paired by name with nesting, network loads are paired
// by id, screenshots become intervals ending at the next screenshot of the
// same window, and IPC markers take their timing from ipc. Markers whose
// start or end falls outside threadRange are clamped to it and flagged
// incomplete.
func DeriveMarkers(table *profile.RawMarkerTable, strings *profile.StringTable, threadID int, threadRange profile.TimeRange, ipc *IPCMarkerCorrelations) (*DerivedMarkers, error) {
	d := &deriver{
		table:       table,
		strings:     strings,
		threadID:    threadID,
		threadRange: threadRange,
		ipc:         ipc,
		result:      &DerivedMarkers{},

		openIntervals:   make(map[profile.StringIndex][]int),
		openNetwork:     make(map[int64]int),
		openScreenshots: make(map[string]int),
	}
	if err := d.run(); err != nil {
		return nil, err
	}
	return d.result, nil
}

type deriver struct {
	table       *profile.RawMarkerTable
	strings     *profile.StringTable
	threadID    int
	threadRange profile.TimeRange
	ipc         *IPCMarkerCorrelations
	result      *DerivedMarkers

	// openIntervals is a stack of IntervalStart rows per name.
	openIntervals map[profile.StringIndex][]int
	// openNetwork assumes at most one open load per network id.
	openNetwork     map[int64]int
	openScreenshots map[string]int
}

func (d *deriver) startTime(i int) (profile.Time, error) {
	t := d.table.StartTime[i]
	if !t.Valid {
		return 0, errs.Errorf("marker %d (%s): start: %w", i, d.table.Phase[i], ErrMissingTime)
	}
	return t.Time, nil
}

func (d *deriver) endTime(i int) (profile.Time, error) {
	t := d.table.EndTime[i]
	if !t.Valid {
		return 0, errs.Errorf("marker %d (%s): end: %w", i, d.table.Phase[i], ErrMissingTime)
	}
	return t.Time, nil
}

func (d *deriver) rowThreadID(i int) int {
	if d.table.ThreadID == nil {
		return profile.None
	}
	return d.table.ThreadID[i]
}

// marker creates a marker with the name, category and thread of row i.
func (d *deriver) marker(i int, start profile.Time, end profile.NullTime, data profile.Payload) Marker {
	return Marker{
		Start:    start,
		End:      end,
		Name:     d.strings.GetString(d.table.Name[i]),
		Category: d.table.Category[i],
		ThreadID: d.rowThreadID(i),
		Data:     data,
	}
}

func (d *deriver) run() error {
	for i := 0; i < d.table.Length; i++ {
		handled, err := d.special(i)
		if err != nil {
			return err
		}
		if handled {
			continue
		}
		if err := d.generic(i); err != nil {
			return err
		}
	}
	return d.flush()
}

// special handles payload types with their own pairing rules. It reports
// whether row i was fully consumed.
func (d *deriver) special(i int) (bool, error) {
	switch data := d.table.Data[i].(type) {
	case *profile.NetworkPayload:
		return true, d.network(i, data)
	case *profile.ScreenshotPayload:
		return d.screenshot(i, data)
	case *profile.IPCPayload:
		return true, d.ipcMarker(i, data)
	}
	return false, nil
}

func (d *deriver) network(i int, data *profile.NetworkPayload) error {
	start, err := d.startTime(i)
	if err != nil {
		return err
	}
	end, err := d.endTime(i)
	if err != nil {
		return err
	}

	if data.Status == profile.NetworkStatusStart {
		d.openNetwork[data.ID] = i
		return nil
	}

	startIndex, ok := d.openNetwork[data.ID]
	if !ok {
		// The load started before the profile.
		clamped := d.threadRange.Start.Min(start)
		payload := *data
		payload.StartTime = clamped
		payload.FetchStart = profile.Some(start)

		m := d.marker(i, clamped, profile.Some(end), &payload)
		m.Incomplete = true
		d.result.add([]int{i}, m)
		return nil
	}
	delete(d.openNetwork, data.ID)

	startStart, err := d.startTime(startIndex)
	if err != nil {
		return err
	}
	payload := *data
	payload.StartTime = startStart
	payload.FetchStart = profile.Some(start)
	if startData, ok := d.table.Data[startIndex].(*profile.NetworkPayload); ok && startData.Cause != nil {
		payload.Cause = startData.Cause
	}

	d.result.add([]int{startIndex, i}, d.marker(i, startStart, profile.Some(end), &payload))
	return nil
}

func (d *deriver) screenshot(i int, data *profile.ScreenshotPayload) (bool, error) {
	start, err := d.startTime(i)
	if err != nil {
		return false, err
	}

	if previous, ok := d.openScreenshots[data.WindowID]; ok {
		previousStart, err := d.startTime(previous)
		if err != nil {
			return false, err
		}
		d.result.add([]int{previous}, d.marker(previous, previousStart, profile.Some(start), d.table.Data[previous]))
	}

	if d.strings.GetString(d.table.Name[i]) == profile.ScreenshotWindowDestroyed {
		// The window is gone, so this row closes the stream and is kept
		// as an ordinary marker.
		delete(d.openScreenshots, data.WindowID)
		return false, nil
	}
	d.openScreenshots[data.WindowID] = i
	return true, nil
}

func (d *deriver) ipcMarker(i int, data *profile.IPCPayload) error {
	shared, ok := d.ipc.Get(d.threadID, i)
	if !ok {
		// Another marker of this thread already represents the message.
		return nil
	}

	sending := data.Direction == profile.IPCSending
	if sending && data.Phase == profile.IPCTransferEnd && shared.SendStartTime.Valid {
		return nil
	}

	name := "IPCIn"
	niceDirection := "received from "
	other := shared.SendThreadName
	if sending {
		name = "IPCOut"
		niceDirection = "sent to "
		other = shared.RecvThreadName
	}
	if other == "" {
		other = data.OtherPid
	}
	niceDirection += other
	if data.Sync {
		name = "Sync" + name
	}

	payload := &IPCMarkerPayload{
		IPCPayload:    *data,
		Shared:        *shared,
		NiceDirection: niceDirection,
	}

	m := d.marker(i, data.StartTime, profile.Some(data.StartTime), payload)
	m.Name = name
	if shared.StartTime.Valid && shared.EndTime.Valid {
		m.Start = shared.StartTime.Time
		m.End = shared.EndTime
	} else {
		m.Incomplete = true
	}
	d.result.add([]int{i}, m)
	return nil
}

func (d *deriver) generic(i int) error {
	data := d.table.Data[i]

	switch d.table.Phase[i] {
	case profile.Instant:
		start, err := d.startTime(i)
		if err != nil {
			return err
		}
		d.result.add([]int{i}, d.marker(i, start, profile.NullTime{}, data))

	case profile.Interval:
		start, err := d.startTime(i)
		if err != nil {
			return err
		}
		end, err := d.endTime(i)
		if err != nil {
			return err
		}
		d.result.add([]int{i}, d.marker(i, start, profile.Some(end), data))

	case profile.IntervalStart:
		name := d.table.Name[i]
		d.openIntervals[name] = append(d.openIntervals[name], i)

	case profile.IntervalEnd:
		end, err := d.endTime(i)
		if err != nil {
			return err
		}

		name := d.table.Name[i]
		open := d.openIntervals[name]
		if len(open) == 0 {
			// The start happened before the profile.
			m := d.marker(i, end.Min(d.threadRange.Start), profile.Some(end), data)
			m.Incomplete = true
			d.result.add([]int{i}, m)
			return nil
		}

		startIndex := open[len(open)-1]
		d.openIntervals[name] = open[:len(open)-1]

		start, err := d.startTime(startIndex)
		if err != nil {
			return err
		}
		m := d.marker(startIndex, start, profile.Some(end), profile.MergePayloads(d.table.Data[startIndex], data))
		m.ThreadID = d.rowThreadID(i)
		d.result.add([]int{startIndex, i}, m)

	default:
		return errs.Errorf("marker %d: %w: %d", i, ErrUnknownPhase, d.table.Phase[i])
	}
	return nil
}

// flush ends everything still open at the end of the thread range.
func (d *deriver) flush() error {
	var starts []int
	for _, open := range d.openIntervals {
		starts = append(starts, open...)
	}
	sort.Ints(starts)
	for _, i := range starts {
		start, err := d.startTime(i)
		if err != nil {
			return err
		}
		m := d.marker(i, start, profile.Some(d.threadRange.End.Max(start)), d.table.Data[i])
		m.Incomplete = true
		d.result.add([]int{i}, m)
	}

	network := maps.Values(d.openNetwork)
	sort.Ints(network)
	for _, i := range network {
		start, err := d.startTime(i)
		if err != nil {
			return err
		}
		m := d.marker(i, start, profile.Some(d.threadRange.End.Max(start)), d.table.Data[i])
		m.Incomplete = true
		d.result.add([]int{i}, m)
	}

	screenshots := maps.Values(d.openScreenshots)
	sort.Ints(screenshots)
	for _, i := range screenshots {
		start, err := d.startTime(i)
		if err != nil {
			return err
		}
		d.result.add([]int{i}, d.marker(i, start, profile.Some(d.threadRange.End.Max(start)), d.table.Data[i]))
	}
	return nil
}
