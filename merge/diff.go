package merge

import (
	"fmt"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"

	"loov.dev/profileview/marker"
	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

// ProfileState is how one profile takes part in a diff.
type ProfileState struct {
	// Name labels the process of the diffed thread, "Profile N" when empty.
	Name string
	// SelectedThreads must hold exactly one thread index.
	SelectedThreads []int
	// CommittedRange limits the thread to samples and markers in range.
	CommittedRange *profile.TimeRange
}

// MergeProfilesForDiffing puts the selected thread of every profile into
// a single profile. Categories are merged by name and libraries by name
// and debug name; every thread starts at zero. With exactly two profiles
// a comparison thread is added whose samples of the first profile weigh
// negative and of the second positive.
func MergeProfilesForDiffing(profiles []*profile.Profile, states []ProfileState, log *zap.Logger) (*profile.Profile, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(profiles) == 0 || len(profiles) != len(states) {
		return nil, errs.Errorf("%d profiles with %d states: %w", len(profiles), len(states), ErrProfileCount)
	}
	for i, state := range states {
		if len(state.SelectedThreads) != 1 {
			return nil, errs.Errorf("profile %d selects %d threads, expected exactly one: %w", i+1, len(state.SelectedThreads), ErrThreadSelection)
		}
		if index := state.SelectedThreads[0]; index < 0 || index >= len(profiles[i].Threads) {
			return nil, errs.Errorf("profile %d has no thread %d: %w", i+1, index, ErrThreadSelection)
		}
		if interval := profiles[i].Meta.Interval; !(interval > 0) {
			return nil, errs.Errorf("profile %d has interval %v: %w", i+1, interval, ErrInterval)
		}
	}

	categoryLists := make([][]profile.Category, len(profiles))
	libLists := make([][]profile.Lib, len(profiles))
	for i, p := range profiles {
		categoryLists[i] = p.Meta.Categories
		libLists[i] = p.Libs
	}

	result := profile.New()
	result.Meta.Interval = profiles[0].Meta.Interval
	result.Meta.StartTime = profiles[0].Meta.StartTime
	result.Meta.Product = profiles[0].Meta.Product
	var categoryMaps, libMaps []*TranslationMap
	result.Meta.Categories, categoryMaps = mergeCategories(categoryLists...)
	result.Libs, libMaps = mergeLibs(libLists...)

	schemas := schema.NewRegistry()
	for _, p := range profiles {
		result.Meta.Interval = result.Meta.Interval.Min(p.Meta.Interval)
		result.Meta.StartTime = result.Meta.StartTime.Min(p.Meta.StartTime)
		schemas = schemas.Merge(schema.NewRegistry(p.Meta.MarkerSchema...))
	}
	if schemas.Len() > 0 {
		result.Meta.MarkerSchema = schemas.Schemas()
	}

	for i, p := range profiles {
		thread, err := prepareDiffThread(i, p, states[i], categoryMaps[i], libMaps[i], result.Strings)
		if err != nil {
			return nil, errs.Errorf("profile %d: %w", i+1, err)
		}
		result.Threads = append(result.Threads, thread)
	}

	if len(profiles) == 2 {
		comparison, err := comparisonThread(result,
			[2]*profile.Thread{result.Threads[0], result.Threads[1]},
			[2]profile.Time{profiles[0].Meta.Interval, profiles[1].Meta.Interval})
		if err != nil {
			return nil, errs.Errorf("comparison: %w", err)
		}
		comparison.TID = len(result.Threads) + 1
		result.Threads = append(result.Threads, comparison)
	}

	log.Debug("merged profiles for diffing",
		zap.Int("profiles", len(profiles)),
		zap.Int("threads", len(result.Threads)),
		zap.Int("categories", len(result.Meta.Categories)),
		zap.Int("libs", len(result.Libs)))
	return result, nil
}

// prepareDiffThread translates the selected thread of p into the result
// tables and moves it to start at zero. Selected threads of different
// profiles may share a tid, so the thread gets tid index+1 and keeps the
// original tid in its name.
func prepareDiffThread(index int, p *profile.Profile, state ProfileState, categories, libs *TranslationMap, stringTable *profile.StringTable) (*profile.Thread, error) {
	selected := state.SelectedThreads[0]
	thread := *p.Threads[selected]
	thread.Markers = *withScreenshots(p, selected)

	if r := state.CommittedRange; r != nil {
		derived, err := marker.DeriveMarkers(&thread.Markers, p.Strings, thread.TID, thread.TimeRange(), nil)
		if err != nil {
			return nil, err
		}
		thread.Markers = *marker.FilterRawMarkerTableToRange(&thread.Markers, derived, r.Start, r.End)
		thread.Samples = FilterSamplesToRange(&thread.Samples, r.Start, r.End)
	}

	src := &source{
		thread:     &thread,
		strings:    newStringTranslator(p.Strings, stringTable),
		categories: categories,
		libs:       libs,
	}
	c, err := combineTables([]*source{src})
	if err != nil {
		return nil, err
	}
	samples, err := translateSamples(&thread.Samples, c.stacks[0])
	if err != nil {
		return nil, err
	}
	rows, err := translateMarkers(src, c.stacks[0], p.Schemas().StringFields())
	if err != nil {
		return nil, err
	}

	out := thread
	c.apply(&out)
	out.Samples = samples
	out.Markers = mergeMarkerRows([][]profile.RawMarker{rows})

	label := state.Name
	if label == "" {
		label = fmt.Sprintf("Profile %d", index+1)
	}
	processName := thread.ProcessName
	if processName == "" {
		processName = thread.Name
	}
	out.PID = fmt.Sprintf("%s from profile %d", thread.PID, index+1)
	out.TID = index + 1
	out.Name = fmt.Sprintf("%s (tid %d)", thread.Name, thread.TID)
	// Markers are attributed to the renamed thread only.
	out.Markers.ThreadID = nil
	out.IsMainThread = true
	out.ProcessName = label + ": " + processName

	if zero, ok := firstTime(&out); ok {
		delta := -zero
		shiftSamples(&out.Samples, delta)
		shiftMarkers(&out.Markers, delta)
		out.RegisterTime += delta
		out.ProcessStartupTime += delta
		if out.UnregisterTime.Valid {
			out.UnregisterTime.Time += delta
		}
		if out.ProcessShutdownTime.Valid {
			out.ProcessShutdownTime.Time += delta
		}
	}
	if !out.UnregisterTime.Valid {
		out.UnregisterTime = profile.Some(out.TimeRange().End)
	}
	return &out, nil
}

// withScreenshots returns the markers of the selected thread followed by
// the screenshot markers of every other thread of p.
func withScreenshots(p *profile.Profile, selected int) *profile.RawMarkerTable {
	table := p.Threads[selected].Markers.Clone()
	for i, other := range p.Threads {
		if i == selected {
			continue
		}
		for r := 0; r < other.Markers.Length; r++ {
			if _, ok := other.Markers.Data[r].(*profile.ScreenshotPayload); ok {
				table.Append(other.Markers.Row(r))
			}
		}
	}
	return table
}

// firstTime is the time of the first sample or, without samples, of the
// earliest marker.
func firstTime(thread *profile.Thread) (profile.Time, bool) {
	if thread.Samples.Length > 0 {
		return thread.Samples.Time[0], true
	}
	first, found := profile.Time(0), false
	for i := 0; i < thread.Markers.Length; i++ {
		row := thread.Markers.Row(i)
		if !row.StartTime.Valid && !row.EndTime.Valid {
			continue
		}
		if t := markerTime(&row); !found || t < first {
			first, found = t, true
		}
	}
	return first, found
}

// comparisonThread combines the diffed threads into one thread with
// signed sample weights.
func comparisonThread(result *profile.Profile, threads [2]*profile.Thread, intervals [2]profile.Time) (*profile.Thread, error) {
	sources := []*source{
		{thread: threads[0], strings: newStringTranslator(result.Strings, result.Strings)},
		{thread: threads[1], strings: newStringTranslator(result.Strings, result.Strings)},
	}
	c, err := combineTables(sources)
	if err != nil {
		return nil, err
	}

	multipliers := [2]float64{
		float64(intervals[0] / result.Meta.Interval),
		float64(intervals[1] / result.Meta.Interval),
	}
	samples, err := combineSamplesDiffing(
		[2]*profile.SamplesTable{&threads[0].Samples, &threads[1].Samples},
		[2]*TranslationMap{c.stacks[0], c.stacks[1]},
		multipliers)
	if err != nil {
		return nil, err
	}

	thread := &profile.Thread{
		Name:               "Diff between 1 and 2",
		ProcessName:        "Diff",
		ProcessType:        "comparison",
		PID:                "0 Diff",
		IsMainThread:       true,
		RegisterTime:       threads[0].RegisterTime.Min(threads[1].RegisterTime),
		ProcessStartupTime: threads[0].ProcessStartupTime.Min(threads[1].ProcessStartupTime),
		UnregisterTime:     laterEnd(threads[0].UnregisterTime, threads[1].UnregisterTime),
	}
	c.apply(thread)
	thread.Samples = samples
	return thread, nil
}
