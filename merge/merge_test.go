package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loov.dev/profileview/marker"
	"loov.dev/profileview/profile"
)

// buildProfile creates a profile with a sampled main thread and a
// compositor thread holding a screenshot. warmup strings and categories
// shift the indexes so that merged profiles need real translation.
func buildProfile(interval profile.Time, warmup ...string) *profile.Profile {
	p := profile.New()
	p.Meta.Interval = interval
	for _, s := range warmup {
		p.Strings.IndexForString(s)
		p.CategoryIndex(s)
	}
	p.Libs = []profile.Lib{{Name: "libxul.so", DebugName: "libxul.so"}}
	js := p.CategoryIndex("JavaScript")

	b := p.NewThread("GeckoMain", "100", 7)
	b.Thread.ProcessName = "Firefox"
	b.Thread.IsMainThread = true
	main := b.Stack(js, "main")
	work := b.Stack(js, "main", "work")
	b.Thread.FuncTable.Resource[0] = b.Thread.ResourceTable.Append(profile.Resource{
		Lib:  0,
		Name: p.Strings.IndexForString("libxul.so"),
		Host: profile.None,
		Type: profile.ResourceLibrary,
	})
	b.Sample(main, 10, 1)
	b.Sample(work, 11, 1)
	b.Sample(work, 12, 1)
	b.IntervalStart("Load", 10.5, js, &profile.GenericPayload{
		Kind:   "Text",
		Fields: map[string]any{"name": p.Strings.IndexForString("page")},
		Cause:  &profile.Cause{Stack: work},
	})
	b.IntervalEnd("Load", 11.5, js, nil)
	b.Finish()

	c := p.NewThread("Compositor", "100", 8)
	c.Instant("CompositorScreenshot", 11, 0, &profile.ScreenshotPayload{
		WindowID: "w1",
		URL:      p.Strings.IndexForString("data:image/png"),
	})
	c.Finish()
	return p
}

func selectMain() ProfileState {
	return ProfileState{SelectedThreads: []int{0}}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func TestDiffIdenticalProfiles(t *testing.T) {
	a := buildProfile(1)

	result, err := MergeProfilesForDiffing([]*profile.Profile{a, a}, []ProfileState{selectMain(), selectMain()}, nil)
	require.NoError(t, err)
	require.Len(t, result.Threads, 3)

	comparison := result.Threads[2]
	require.Equal(t, "Diff between 1 and 2", comparison.Name)
	require.Equal(t, 6, comparison.Samples.Length)
	require.Equal(t, []float64{-1, 1, -1, 1, -1, 1}, comparison.Samples.Weight)
	require.Zero(t, sum(comparison.Samples.Weight))

	// identical call trees collapse into one
	require.Equal(t, 2, comparison.FuncTable.Length)
	require.Equal(t, 2, comparison.StackTable.Length)
	require.Equal(t, 0, comparison.Markers.Length)
}

func TestDiffSignConvention(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(2, "zzz", "Layout")

	result, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, []ProfileState{
		{Name: "Before", SelectedThreads: []int{0}},
		{Name: "After", SelectedThreads: []int{0}},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, profile.Time(1), result.Meta.Interval)
	var categories []string
	for _, c := range result.Meta.Categories {
		categories = append(categories, c.Name)
	}
	require.Equal(t, []string{"Other", "JavaScript", "zzz", "Layout"}, categories)
	require.Len(t, result.Libs, 1)

	comparison := result.Threads[2]
	require.Equal(t, []float64{-1, 2, -1, 2, -1, 2}, comparison.Samples.Weight)
	require.Equal(t, 2, comparison.FuncTable.Length)
	for _, category := range comparison.FrameTable.Category {
		require.Equal(t, 1, category)
	}

	after := result.Threads[1]
	require.Equal(t, "After: Firefox", after.ProcessName)
	require.Equal(t, "100 from profile 2", after.PID)
	for _, category := range after.FrameTable.Category {
		require.Equal(t, "JavaScript", result.Meta.Categories[category].Name)
	}
}

func TestDiffThread(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(1, "zzz")

	result, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, []ProfileState{selectMain(), selectMain()}, nil)
	require.NoError(t, err)

	thread := result.Threads[0]
	assert.Equal(t, "100 from profile 1", thread.PID)
	assert.Equal(t, "Profile 1: Firefox", thread.ProcessName)
	assert.True(t, thread.IsMainThread)
	assert.Equal(t, []profile.Time{0, 1, 2}, thread.Samples.Time)
	assert.Equal(t, profile.Time(0), thread.RegisterTime)
	assert.Equal(t, profile.Some(2), thread.UnregisterTime)

	markers := &thread.Markers
	require.Equal(t, 3, markers.Length)
	assert.Equal(t, profile.Some(0.5), markers.StartTime[0])
	assert.Equal(t, profile.Some(1.5), markers.EndTime[1])
	assert.Equal(t, "Load", result.Strings.GetString(markers.Name[0]))

	text := markers.Data[0].(*profile.GenericPayload)
	assert.Equal(t, "page", result.Strings.GetString(text.Fields["name"].(profile.StringIndex)))
	require.NotNil(t, text.Cause)
	assert.Equal(t, 2, thread.StackTable.Length)
	assert.Equal(t, "work", result.Strings.GetString(thread.FuncTable.Name[thread.FrameTable.Func[thread.StackTable.Frame[text.Cause.Stack]]]))

	screenshot := markers.Data[2].(*profile.ScreenshotPayload)
	assert.Equal(t, "data:image/png", result.Strings.GetString(screenshot.URL))
	assert.Equal(t, profile.Some(1), markers.StartTime[2])

	// inputs are left untouched
	assert.Equal(t, profile.Time(10), a.Threads[0].Samples.Time[0])
	assert.Equal(t, 2, a.Threads[0].Markers.Length)
	assert.False(t, a.Threads[0].UnregisterTime.Valid)
}

func TestDiffCommittedRange(t *testing.T) {
	a := buildProfile(1)
	state := ProfileState{
		SelectedThreads: []int{0},
		CommittedRange:  &profile.TimeRange{Start: 11, End: 13},
	}

	result, err := MergeProfilesForDiffing([]*profile.Profile{a}, []ProfileState{state}, nil)
	require.NoError(t, err)
	require.Len(t, result.Threads, 1)

	thread := result.Threads[0]
	require.Equal(t, []profile.Time{0, 1}, thread.Samples.Time)
	require.Equal(t, 3, thread.Markers.Length)
	require.Equal(t, profile.Some(-0.5), thread.Markers.StartTime[0])
}

func TestDiffErrors(t *testing.T) {
	a := buildProfile(1)

	_, err := MergeProfilesForDiffing([]*profile.Profile{a, a}, []ProfileState{selectMain()}, nil)
	require.ErrorIs(t, err, ErrProfileCount)

	_, err = MergeProfilesForDiffing(nil, nil, nil)
	require.ErrorIs(t, err, ErrProfileCount)

	for _, selected := range [][]int{nil, {0, 1}, {5}, {-1}} {
		_, err = MergeProfilesForDiffing([]*profile.Profile{a, a}, []ProfileState{
			selectMain(),
			{SelectedThreads: selected},
		}, nil)
		require.ErrorIs(t, err, ErrThreadSelection, selected)
	}
}

func TestDiffSharedTID(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(1, "zzz")
	for _, p := range []*profile.Profile{a, b} {
		require.Equal(t, 7, p.Threads[0].TID)
		p.Threads[0].Markers.Append(profile.RawMarker{
			Name:      p.Strings.IndexForString("IPC"),
			StartTime: profile.Some(11),
			Phase:     profile.Instant,
			Data: &profile.IPCPayload{
				StartTime:    11,
				EndTime:      11,
				OtherPid:     "200",
				MessageType:  "PContent::Msg_Ping",
				MessageSeqno: 1,
				Direction:    profile.IPCSending,
				Phase:        profile.IPCEndpoint,
			},
			ThreadID: profile.None,
		})
	}

	result, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, []ProfileState{selectMain(), selectMain()}, nil)
	require.NoError(t, err)
	require.Len(t, result.Threads, 3)
	assert.Equal(t, 1, result.Threads[0].TID)
	assert.Equal(t, 2, result.Threads[1].TID)
	assert.Equal(t, 3, result.Threads[2].TID)
	assert.Equal(t, "GeckoMain (tid 7)", result.Threads[1].Name)

	derived, err := marker.DeriveProfile(context.Background(), result, nil)
	require.NoError(t, err)
	require.Equal(t, 2, derived.IPC.Len())
	for i, want := range []string{"Profile 1: Firefox (Thread ID: 1)", "Profile 2: Firefox (Thread ID: 2)"} {
		var names []string
		for _, m := range derived.Threads[i].Markers {
			if data, ok := m.Data.(*marker.IPCMarkerPayload); ok {
				names = append(names, data.Shared.SendThreadName)
			}
		}
		assert.Equal(t, []string{want}, names)
	}
}

func TestDiffInterval(t *testing.T) {
	a := buildProfile(1)
	for _, interval := range []profile.Time{0, -1} {
		b := buildProfile(interval)
		_, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, []ProfileState{selectMain(), selectMain()}, nil)
		require.ErrorIs(t, err, ErrInterval)
	}
}

func TestMergeDeterminism(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(2, "zzz", "Layout")
	states := []ProfileState{selectMain(), selectMain()}

	first, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, states, nil)
	require.NoError(t, err)
	second, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, states, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTranslationMapsAreTotal(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(1, "zzz")
	to := profile.NewStringTable()

	sources := []*source{
		{thread: a.Threads[0], strings: newStringTranslator(a.Strings, to)},
		{thread: b.Threads[0], strings: newStringTranslator(b.Strings, to)},
	}
	c, err := combineTables(sources)
	require.NoError(t, err)

	check := func(maps []*TranslationMap, length int) {
		for _, m := range maps {
			for old := 0; old < m.Len(); old++ {
				index, err := m.Get(old)
				require.NoError(t, err)
				require.GreaterOrEqual(t, index, 0)
				require.Less(t, index, length)
			}
		}
	}
	check(c.resources, c.Resources.Length)
	check(c.nativeSymbols, c.NativeSymbols.Length)
	check(c.funcs, c.Funcs.Length)
	check(c.frames, c.Frames.Length)
	check(c.stacks, c.Stacks.Length)

	require.Equal(t, 1, c.Resources.Length)
	require.Equal(t, 2, c.Funcs.Length)
}

func TestMissingTranslation(t *testing.T) {
	p := profile.New()
	b := p.NewThread("Main", "1", 1)
	b.Stack(0, "main")
	b.Thread.FrameTable.Func[0] = 5

	_, err := combineTables([]*source{{thread: b.Thread, strings: newStringTranslator(p.Strings, p.Strings)}})
	require.ErrorIs(t, err, ErrMissingTranslation)

	p = profile.New()
	b = p.NewThread("Main", "1", 1)
	b.Stack(0, "main")
	b.Thread.FuncTable.Name[0] = 42
	_, err = combineTables([]*source{{thread: b.Thread, strings: newStringTranslator(p.Strings, profile.NewStringTable())}})
	require.ErrorIs(t, err, ErrMissingTranslation)

	m := newTranslationMap("stack", 2)
	m.set(0, 3)
	_, err = m.Get(1)
	require.ErrorIs(t, err, ErrMissingTranslation)
	index, err := m.Get(profile.None)
	require.NoError(t, err)
	require.Equal(t, profile.None, index)

	var identity *TranslationMap
	index, err = identity.Get(7)
	require.NoError(t, err)
	require.Equal(t, 7, index)
}

func TestMergeThreads(t *testing.T) {
	p1 := profile.New()
	t1 := p1.NewThread("Main", "1", 1)
	a := t1.Stack(0, "a")
	t1.Sample(a, 1, 1)
	t1.Sample(a, 3, 1)
	t1.Instant("M1", 1.5, 0, &profile.GenericPayload{Kind: "Text", Fields: map[string]any{"name": p1.Strings.IndexForString("one")}})

	p2 := profile.New()
	p2.Strings.IndexForString("padding")
	t2 := p2.NewThread("Worker", "1", 2)
	ab := t2.Stack(0, "a", "b")
	t2.Sample(ab, 2, 3)
	t2.IntervalStart("L", 0.5, 0, nil)
	t2.IntervalEnd("L", 2.5, 0, &profile.NetworkPayload{ID: 1, Cause: &profile.Cause{Stack: ab}})

	merged, strings, err := MergeThreads([]Input{
		{Thread: t1.Finish(), Strings: p1.Strings},
		{Thread: t2.Finish(), Strings: p2.Strings},
	}, profile.New().Schemas().StringFields())
	require.NoError(t, err)

	assert.Equal(t, "Merged thread", merged.Name)
	assert.Equal(t, "Main, Worker", merged.ProcessName)
	assert.Equal(t, "1", merged.PID)
	assert.Equal(t, profile.Time(0.5), merged.RegisterTime)

	assert.Equal(t, []profile.Time{1, 2, 3}, merged.Samples.Time)
	assert.Equal(t, []float64{1, 3, 1}, merged.Samples.Weight)
	assert.Equal(t, 2, merged.FuncTable.Length)
	assert.Equal(t, 2, merged.StackTable.Length)
	assert.Equal(t, merged.Samples.Stack[0], merged.Samples.Stack[2])

	var names []string
	for i := 0; i < merged.Markers.Length; i++ {
		names = append(names, strings.GetString(merged.Markers.Name[i]))
	}
	assert.Equal(t, []string{"L", "M1", "L"}, names)

	text := merged.Markers.Data[1].(*profile.GenericPayload)
	assert.Equal(t, "one", strings.GetString(text.Fields["name"].(profile.StringIndex)))

	assert.Equal(t, []int{2, 1, 2}, merged.Markers.ThreadID)

	network := merged.Markers.Data[2].(*profile.NetworkPayload)
	assert.Equal(t, merged.Samples.Stack[1], network.Cause.Stack)

	_, _, err = MergeThreads(nil, nil)
	require.ErrorIs(t, err, ErrProfileCount)
}

func TestMergeProfileThreads(t *testing.T) {
	p := buildProfile(1)
	merged, err := MergeProfileThreads(p, []int{0, 1})
	require.NoError(t, err)
	require.Len(t, merged.Threads, 1)
	require.Equal(t, 3, merged.Threads[0].Samples.Length)
	require.Equal(t, 3, merged.Threads[0].Markers.Length)

	require.Equal(t, []int{7, 8, 7}, merged.Threads[0].Markers.ThreadID)

	_, err = MergeProfileThreads(p, []int{2})
	require.ErrorIs(t, err, ErrThreadSelection)
	_, err = MergeProfileThreads(p, nil)
	require.ErrorIs(t, err, ErrThreadSelection)
}

func TestFilterSamplesToRange(t *testing.T) {
	samples := &profile.SamplesTable{
		Stack:  []int{0, 1, 2, 3},
		Time:   []profile.Time{1, 2, 3, 4},
		Weight: []float64{1, 2, 3, 4},
		Length: 4,
	}
	filtered := FilterSamplesToRange(samples, 2, 4)
	require.Equal(t, profile.SamplesTable{
		Stack:  []int{1, 2},
		Time:   []profile.Time{2, 3},
		Weight: []float64{2, 3},
		Length: 2,
	}, filtered)
}

func TestToPProf(t *testing.T) {
	a := buildProfile(1)
	b := buildProfile(1, "zzz")
	result, err := MergeProfilesForDiffing([]*profile.Profile{a, b}, []ProfileState{selectMain(), selectMain()}, nil)
	require.NoError(t, err)

	out, err := ToPProf(result.Threads[2], result.Strings, result.Meta.Interval)
	require.NoError(t, err)
	require.Len(t, out.Sample, 6)
	require.Len(t, out.Function, 2)
	require.Len(t, out.Location, 2)

	var total int64
	for _, sample := range out.Sample {
		total += sample.Value[0]
	}
	require.Zero(t, total)
	require.Equal(t, []int64{-1, -1000000}, out.Sample[0].Value)
	require.Equal(t, "main", out.Sample[0].Location[0].Line[0].Function.Name)
	require.Len(t, out.Sample[1].Location, 1)
	require.Len(t, out.Sample[2].Location, 2)
	require.Equal(t, "work", out.Sample[2].Location[0].Line[0].Function.Name)
}
