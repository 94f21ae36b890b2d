package flow

import "loov.dev/profileview/profile"

// ConnectedFlowInfo lists the flows related to one flow, each sorted.
type ConnectedFlowInfo struct {
	// DirectlyConnected flows share a flow marker with the flow.
	DirectlyConnected []int
	// IncomingContext flows contain the parent context of one of its
	// flow markers.
	IncomingContext []int
	// OutgoingContext flows contain a child context of one of its flow
	// markers.
	OutgoingContext []int
}

// ConnectedFlowInfo collects the flows related to flowIndex. The flow
// itself is never listed.
func (info *ProfileFlowInfo) ConnectedFlowInfo(flowIndex int) ConnectedFlowInfo {
	var connected ConnectedFlowInfo

	add := func(set []int, flows []int) []int {
		for _, f := range flows {
			if f != flowIndex {
				set = appendUnique(set, f)
			}
		}
		return set
	}

	for _, ref := range info.Flows[flowIndex].FlowMarkers {
		connected.DirectlyConnected = add(connected.DirectlyConnected, info.FlowsOf(ref))

		fm := info.FlowMarker(ref)
		if fm.ParentContextFlowMarker != profile.None {
			parent := FlowMarkerRef{ThreadIndex: ref.ThreadIndex, FlowMarkerIndex: fm.ParentContextFlowMarker}
			connected.IncomingContext = add(connected.IncomingContext, info.FlowsOf(parent))
		}
		for _, child := range fm.ChildContextFlowMarkers {
			childRef := FlowMarkerRef{ThreadIndex: ref.ThreadIndex, FlowMarkerIndex: child}
			connected.OutgoingContext = add(connected.OutgoingContext, info.FlowsOf(childRef))
		}
	}
	return connected
}
