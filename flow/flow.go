// Package flow connects markers that share flow ids into flows spanning
// threads and processes.
package flow

import (
	"sort"

	"golang.org/x/exp/maps"

	"loov.dev/profileview/profile"
)

type FlowIDEntry struct {
	FlowID        string
	IsTerminating bool
}

// FlowMarker is a derived marker that carries at least one flow field.
type FlowMarker struct {
	// MarkerIndex is the index into the derived markers of the thread.
	MarkerIndex int
	FlowIDs     []FlowIDEntry
	StartTime   profile.Time
	EndTime     profile.NullTime

	// ParentContextFlowMarker is the enclosing stack-based flow marker on
	// the same thread, or profile.None.
	ParentContextFlowMarker int
	ChildContextFlowMarkers []int
}

// end returns the end time of the marker, or its start for instants.
func (fm *FlowMarker) end() profile.Time {
	return fm.EndTime.Or(fm.StartTime)
}

type FlowMarkerRef struct {
	ThreadIndex     int
	FlowMarkerIndex int
}

// Flow is one causal chain of flow markers sharing an id. An id can be
// reused by later flows once a terminating marker closed the previous one.
type Flow struct {
	ID          string
	StartTime   profile.Time
	EndTime     profile.Time
	FlowMarkers []FlowMarkerRef
}

// ProfileFlowInfo is the flow graph of a whole profile.
type ProfileFlowInfo struct {
	Flows []Flow
	// FlowMarkersPerThread is indexed like the profile threads.
	FlowMarkersPerThread [][]FlowMarker
	// FlowMarkerFlowsPerThread lists the sorted flow indexes of every flow
	// marker.
	FlowMarkerFlowsPerThread [][][]int
	// FlowsByID lists the flows of an id, ordered by start time.
	FlowsByID map[string][]int
}

// FlowMarker returns the flow marker ref points to.
func (info *ProfileFlowInfo) FlowMarker(ref FlowMarkerRef) *FlowMarker {
	return &info.FlowMarkersPerThread[ref.ThreadIndex][ref.FlowMarkerIndex]
}

// FlowsOf returns the flows the flow marker participates in.
func (info *ProfileFlowInfo) FlowsOf(ref FlowMarkerRef) []int {
	return info.FlowMarkerFlowsPerThread[ref.ThreadIndex][ref.FlowMarkerIndex]
}

// IDs returns every flow id in sorted order.
func (info *ProfileFlowInfo) IDs() []string {
	ids := maps.Keys(info.FlowsByID)
	sort.Strings(ids)
	return ids
}

// LookupFlow finds the latest flow with the given id that started at or
// before at.
func (info *ProfileFlowInfo) LookupFlow(id string, at profile.Time) (int, bool) {
	flows := info.FlowsByID[id]
	i := sort.Search(len(flows), func(i int) bool {
		return info.Flows[flows[i]].StartTime > at
	}) - 1
	if i < 0 {
		return profile.None, false
	}
	return flows[i], true
}

func contains(set []int, v int) bool {
	i := sort.SearchInts(set, v)
	return i < len(set) && set[i] == v
}

// appendUnique inserts values into a sorted set.
func appendUnique(set []int, values ...int) []int {
	for _, v := range values {
		if contains(set, v) {
			continue
		}
		i := sort.SearchInts(set, v)
		set = append(set, 0)
		copy(set[i+1:], set[i:])
		set[i] = v
	}
	return set
}
