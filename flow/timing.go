package flow

import "loov.dev/profileview/profile"

type RowType uint8

const (
	IncomingContextRow RowType = iota
	ActiveRow
	DirectlyConnectedRow
	OutgoingContextRow
)

func (t RowType) String() string {
	switch t {
	case IncomingContextRow:
		return "incoming"
	case ActiveRow:
		return "active"
	case DirectlyConnectedRow:
		return "direct"
	case OutgoingContextRow:
		return "outgoing"
	}
	return "unknown"
}

// MarkerTiming holds the flow markers of one row as parallel columns.
type MarkerTiming struct {
	ThreadIndex     []int32
	MarkerIndex     []int32
	FlowMarkerIndex []int32
	Start           []float64
	End             []float64
	IsInstant       []bool
	Length          int
}

func (t *MarkerTiming) append(ref FlowMarkerRef, fm *FlowMarker) {
	t.ThreadIndex = append(t.ThreadIndex, int32(ref.ThreadIndex))
	t.MarkerIndex = append(t.MarkerIndex, int32(fm.MarkerIndex))
	t.FlowMarkerIndex = append(t.FlowMarkerIndex, int32(ref.FlowMarkerIndex))
	t.Start = append(t.Start, float64(fm.StartTime))
	t.End = append(t.End, float64(fm.end()))
	t.IsInstant = append(t.IsInstant, !fm.EndTime.Valid)
	t.Length++
}

type FlowTimingRow struct {
	Type      RowType
	FlowIndex int
	FlowStart profile.Time
	FlowEnd   profile.Time
	Markers   MarkerTiming
}

// FlowTiming lays out the active flows and the flows connected to them,
// one row per flow.
type FlowTiming struct {
	Rows      []FlowTimingRow
	rowByFlow map[int]int
}

// RowOf returns the row of a flow.
func (t *FlowTiming) RowOf(flowIndex int) (int, bool) {
	row, ok := t.rowByFlow[flowIndex]
	return row, ok
}

// ComputeFlowTiming builds the timing rows for activeFlows.
//
// Rows are ordered incoming context, active, directly connected and
// outgoing context. A flow related in several ways is placed only once,
// preferring active, then directly connected, then incoming, then
// outgoing.
func ComputeFlowTiming(info *ProfileFlowInfo, activeFlows []int) *FlowTiming {
	active := appendUnique(nil, activeFlows...)

	var direct, incoming, outgoing []int
	for _, flowIndex := range active {
		connected := info.ConnectedFlowInfo(flowIndex)
		direct = appendUnique(direct, connected.DirectlyConnected...)
		incoming = appendUnique(incoming, connected.IncomingContext...)
		outgoing = appendUnique(outgoing, connected.OutgoingContext...)
	}

	claimed := make(map[int]bool, len(active))
	claim := func(flows []int) []int {
		var unclaimed []int
		for _, f := range flows {
			if claimed[f] {
				continue
			}
			claimed[f] = true
			unclaimed = append(unclaimed, f)
		}
		return unclaimed
	}
	active = claim(active)
	direct = claim(direct)
	incoming = claim(incoming)
	outgoing = claim(outgoing)

	timing := &FlowTiming{rowByFlow: make(map[int]int)}
	addRows := func(rowType RowType, flows []int) {
		for _, flowIndex := range flows {
			flow := &info.Flows[flowIndex]
			row := FlowTimingRow{
				Type:      rowType,
				FlowIndex: flowIndex,
				FlowStart: flow.StartTime,
				FlowEnd:   flow.EndTime,
			}
			for _, ref := range flow.FlowMarkers {
				row.Markers.append(ref, info.FlowMarker(ref))
			}
			timing.rowByFlow[flowIndex] = len(timing.Rows)
			timing.Rows = append(timing.Rows, row)
		}
	}
	addRows(IncomingContextRow, incoming)
	addRows(ActiveRow, active)
	addRows(DirectlyConnectedRow, direct)
	addRows(OutgoingContextRow, outgoing)

	return timing
}

// FlowTimingArrow connects a context flow marker to a flow marker nested
// in it.
type FlowTimingArrow struct {
	Source    FlowMarkerRef
	Target    FlowMarkerRef
	SourceRow int
	TargetRow int
	// Time is the start of the target.
	Time profile.Time
}

// rowOfFlowMarker returns the first row showing one of the flows of ref.
func (t *FlowTiming) rowOfFlowMarker(info *ProfileFlowInfo, ref FlowMarkerRef) (int, bool) {
	best, found := 0, false
	for _, flowIndex := range info.FlowsOf(ref) {
		row, ok := t.rowByFlow[flowIndex]
		if ok && (!found || row < best) {
			best, found = row, true
		}
	}
	return best, found
}

// ArrowsRelatedToMarker returns the arrows from the context ancestors of
// ref down to it and from ref to all of its nested context descendants.
// Arrows between flow markers shown on the same row, or on no row, are
// left out.
func (t *FlowTiming) ArrowsRelatedToMarker(info *ProfileFlowInfo, ref FlowMarkerRef) []FlowTimingArrow {
	var arrows []FlowTimingArrow
	add := func(source, target FlowMarkerRef) {
		sourceRow, ok := t.rowOfFlowMarker(info, source)
		if !ok {
			return
		}
		targetRow, ok := t.rowOfFlowMarker(info, target)
		if !ok || sourceRow == targetRow {
			return
		}
		arrows = append(arrows, FlowTimingArrow{
			Source:    source,
			Target:    target,
			SourceRow: sourceRow,
			TargetRow: targetRow,
			Time:      info.FlowMarker(target).StartTime,
		})
	}

	for current := ref; ; {
		parent := info.FlowMarker(current).ParentContextFlowMarker
		if parent == profile.None {
			break
		}
		parentRef := FlowMarkerRef{ThreadIndex: current.ThreadIndex, FlowMarkerIndex: parent}
		add(parentRef, current)
		current = parentRef
	}

	stack := []FlowMarkerRef{ref}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range info.FlowMarker(current).ChildContextFlowMarkers {
			childRef := FlowMarkerRef{ThreadIndex: current.ThreadIndex, FlowMarkerIndex: child}
			add(current, childRef)
			stack = append(stack, childRef)
		}
	}

	return arrows
}
