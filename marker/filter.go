package marker

import (
	"sort"

	"loov.dev/profileview/profile"
)

// Overlaps reports whether m intersects [start, end).
func (m *Marker) Overlaps(start, end profile.Time) bool {
	if !m.End.Valid {
		return m.Start >= start && m.Start < end
	}
	return m.Start < end && m.End.Time >= start
}

// RawIndexesInRange returns the sorted raw rows of every marker that
// overlaps [start, end).
func RawIndexesInRange(derived *DerivedMarkers, start, end profile.Time) []int {
	seen := make(map[int]struct{})
	var raw []int
	for i := range derived.Markers {
		if !derived.Markers[i].Overlaps(start, end) {
			continue
		}
		for _, index := range derived.RawIndexes[i] {
			if _, ok := seen[index]; ok {
				continue
			}
			seen[index] = struct{}{}
			raw = append(raw, index)
		}
	}
	sort.Ints(raw)
	return raw
}

// FilterRawMarkerTableToRange returns a new table with the rows of the
// markers overlapping [start, end), in their original order.
func FilterRawMarkerTableToRange(table *profile.RawMarkerTable, derived *DerivedMarkers, start, end profile.Time) *profile.RawMarkerTable {
	filtered := &profile.RawMarkerTable{}
	for _, i := range RawIndexesInRange(derived, start, end) {
		filtered.Append(table.Row(i))
	}
	return filtered
}

// Filtered is a compacted raw marker table. OldToNew maps every kept old
// row to its new index; removed rows are profile.None.
type Filtered struct {
	Table    *profile.RawMarkerTable
	OldToNew []int
}

// NewIndex translates an old raw row.
func (f *Filtered) NewIndex(old int) (int, bool) {
	if old < 0 || old >= len(f.OldToNew) || f.OldToNew[old] == profile.None {
		return profile.None, false
	}
	return f.OldToNew[old], true
}

// FilterRawMarkerTableWithDeletions removes the rows in toDelete and, when
// filterRange is set, the rows of markers outside of it. Without deletions
// and without a range the original table is returned.
func FilterRawMarkerTableWithDeletions(table *profile.RawMarkerTable, derived *DerivedMarkers, toDelete map[int]struct{}, filterRange *profile.TimeRange) *Filtered {
	oldToNew := make([]int, table.Length)
	if len(toDelete) == 0 && filterRange == nil {
		for i := range oldToNew {
			oldToNew[i] = i
		}
		return &Filtered{Table: table, OldToNew: oldToNew}
	}
	for i := range oldToNew {
		oldToNew[i] = profile.None
	}

	filtered := &profile.RawMarkerTable{}
	include := func(i int) {
		if _, ok := toDelete[i]; ok {
			return
		}
		oldToNew[i] = filtered.Append(table.Row(i))
	}

	if filterRange == nil {
		for i := 0; i < table.Length; i++ {
			include(i)
		}
	} else {
		for _, i := range RawIndexesInRange(derived, filterRange.Start, filterRange.End) {
			include(i)
		}
	}
	return &Filtered{Table: filtered, OldToNew: oldToNew}
}
