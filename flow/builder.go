package flow

import (
	"sort"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"

	"loov.dev/profileview/marker"
	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

// ComputeFlowMarkers extracts the flow markers of one thread from its
// derived markers.
//
// Stack-based flow markers with an end become the context of the markers
// that start before they end. Non stack-based interval markers get a
// parent context but are not listed among its children.
//
// Derived markers come in the order they were completed, so a split
// interval follows the markers nested in it. The flow markers are
// ordered by start time, the longer one first on ties.
func ComputeFlowMarkers(markers []marker.Marker, strings *profile.StringTable, flowSchemas schema.FlowSchemasByName) ([]FlowMarker, error) {
	var flowMarkers []FlowMarker

	var contextMarkers []int
	var contextEnds []profile.Time

	order := make([]int, len(markers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := &markers[order[x]], &markers[order[y]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End.Or(a.Start) > b.End.Or(b.Start)
	})

	for _, i := range order {
		m := &markers[i]
		for n := len(contextEnds); n > 0 && contextEnds[n-1] < m.Start; n-- {
			contextEnds = contextEnds[:n-1]
			contextMarkers = contextMarkers[:n-1]
		}

		if m.Data == nil {
			continue
		}
		payloadType := m.Data.PayloadType()
		if payloadType == "" {
			continue
		}
		flowSchema, ok := flowSchemas[payloadType]
		if !ok {
			continue
		}

		var ids []FlowIDEntry
		for _, field := range flowSchema.Fields {
			value, ok := m.Data.Field(field.Key)
			if !ok || value == nil {
				continue
			}
			index, ok := value.(profile.StringIndex)
			if !ok {
				return nil, errs.Errorf("marker %d %q: flow field %q holds %T, expected a string index", i, m.Name, field.Key, value)
			}
			ids = append(ids, FlowIDEntry{
				FlowID:        strings.GetString(index),
				IsTerminating: field.IsTerminating,
			})
		}

		parent := profile.None
		if n := len(contextMarkers); n > 0 {
			parent = contextMarkers[n-1]
		}

		index := len(flowMarkers)
		flowMarkers = append(flowMarkers, FlowMarker{
			MarkerIndex:             i,
			FlowIDs:                 ids,
			StartTime:               m.Start,
			EndTime:                 m.End,
			ParentContextFlowMarker: parent,
		})

		if parent != profile.None && (flowSchema.IsStackBased || m.IsInstant()) {
			flowMarkers[parent].ChildContextFlowMarkers = append(flowMarkers[parent].ChildContextFlowMarkers, index)
		}
		if flowSchema.IsStackBased && m.End.Valid {
			contextMarkers = append(contextMarkers, index)
			contextEnds = append(contextEnds, m.End.Time)
		}
	}

	return flowMarkers, nil
}

// ComputeProfileFlowInfo extracts the flow markers of every thread and
// assigns them to flows in start time order across all threads.
func ComputeProfileFlowInfo(threadsMarkers [][]marker.Marker, strings *profile.StringTable, flowSchemas schema.FlowSchemasByName, log *zap.Logger) (*ProfileFlowInfo, error) {
	if log == nil {
		log = zap.NewNop()
	}

	info := &ProfileFlowInfo{
		FlowMarkersPerThread:     make([][]FlowMarker, len(threadsMarkers)),
		FlowMarkerFlowsPerThread: make([][][]int, len(threadsMarkers)),
		FlowsByID:                make(map[string][]int),
	}

	withoutIDs := 0
	for thread, markers := range threadsMarkers {
		flowMarkers, err := ComputeFlowMarkers(markers, strings, flowSchemas)
		if err != nil {
			return nil, errs.Errorf("thread %d: %w", thread, err)
		}
		info.FlowMarkersPerThread[thread] = flowMarkers
		info.FlowMarkerFlowsPerThread[thread] = make([][]int, len(flowMarkers))
		for i := range flowMarkers {
			if len(flowMarkers[i].FlowIDs) == 0 {
				withoutIDs++
			}
		}
	}
	if withoutIDs > 0 {
		log.Warn("flow markers without flow ids", zap.Int("count", withoutIDs))
	}

	active := make(map[string]int)
	queue := newFlowMarkerQueue(info.FlowMarkersPerThread)
	for queue.Len() > 0 {
		ref := queue.Next()
		fm := info.FlowMarker(ref)

		var flows []int
		for _, entry := range fm.FlowIDs {
			flowIndex, ok := active[entry.FlowID]
			if !ok {
				flowIndex = len(info.Flows)
				info.Flows = append(info.Flows, Flow{
					ID:          entry.FlowID,
					StartTime:   fm.StartTime,
					EndTime:     fm.end(),
					FlowMarkers: []FlowMarkerRef{ref},
				})
				info.FlowsByID[entry.FlowID] = append(info.FlowsByID[entry.FlowID], flowIndex)
				if !entry.IsTerminating {
					active[entry.FlowID] = flowIndex
				}
				flows = appendUnique(flows, flowIndex)
				continue
			}

			if entry.IsTerminating {
				delete(active, entry.FlowID)
			}
			if !contains(flows, flowIndex) {
				flow := &info.Flows[flowIndex]
				flow.EndTime = flow.EndTime.Max(fm.end())
				flow.FlowMarkers = append(flow.FlowMarkers, ref)
				flows = appendUnique(flows, flowIndex)
			}
		}
		info.FlowMarkerFlowsPerThread[ref.ThreadIndex][ref.FlowMarkerIndex] = flows
	}

	log.Debug("computed flows",
		zap.Int("threads", len(threadsMarkers)),
		zap.Int("flows", len(info.Flows)),
		zap.Int("ids", len(info.FlowsByID)))
	return info, nil
}
