package marker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"loov.dev/profileview/profile"
)

func newThread(name string) (*profile.Profile, *profile.ThreadBuilder) {
	p := profile.New()
	return p, p.NewThread(name, "1", 1)
}

func derive(t *testing.T, p *profile.Profile, b *profile.ThreadBuilder, r profile.TimeRange) *DerivedMarkers {
	t.Helper()
	derived, err := DeriveMarkers(&b.Thread.Markers, p.Strings, b.Thread.TID, r, nil)
	require.NoError(t, err)
	require.Len(t, derived.RawIndexes, len(derived.Markers))
	return derived
}

func TestDeriveIntervalPair(t *testing.T) {
	p, b := newThread("Main")
	b.IntervalStart("X", 5, 0, nil)
	b.IntervalEnd("X", 15, 0, nil)

	derived := derive(t, p, b, profile.TimeRange{Start: 0, End: 20})
	require.Equal(t, []Marker{{
		Start:    5,
		End:      profile.Some(15),
		Name:     "X",
		ThreadID: profile.None,
	}}, derived.Markers)
	require.Equal(t, [][]int{{0, 1}}, derived.RawIndexes)
}

func TestDeriveNestedAndUnmatched(t *testing.T) {
	p, b := newThread("Main")
	b.IntervalStart("A", 1, 0, nil)
	b.IntervalStart("A", 2, 0, nil)
	b.IntervalEnd("A", 3, 0, nil)
	b.IntervalEnd("A", 4, 0, nil)
	b.IntervalStart("B", 5, 0, nil)
	b.IntervalEnd("C", 7, 0, nil)
	b.IntervalStart("D", 30, 0, nil)

	derived := derive(t, p, b, profile.TimeRange{Start: 0.5, End: 20})
	require.Len(t, derived.Markers, 5)

	inner := derived.Markers[0]
	require.Equal(t, profile.Time(2), inner.Start)
	require.Equal(t, profile.Some(3), inner.End)
	require.Equal(t, [][]int{{1, 2}, {0, 3}}, derived.RawIndexes[:2])

	endOnly := derived.Markers[2]
	require.Equal(t, "C", endOnly.Name)
	require.Equal(t, profile.Time(0.5), endOnly.Start)
	require.True(t, endOnly.Incomplete)

	startOnly := derived.Markers[3]
	require.Equal(t, "B", startOnly.Name)
	require.Equal(t, profile.Some(20), startOnly.End)
	require.True(t, startOnly.Incomplete)

	late := derived.Markers[4]
	require.Equal(t, "D", late.Name)
	require.Equal(t, profile.Some(30), late.End)
	require.True(t, late.Incomplete)
}

func TestDeriveMergesIntervalPayloads(t *testing.T) {
	p, b := newThread("Main")
	b.IntervalStart("T", 1, 0, &profile.GenericPayload{Kind: "Text", Fields: map[string]any{"a": "start", "b": "start"}})
	b.IntervalEnd("T", 2, 0, &profile.GenericPayload{Kind: "Text", Fields: map[string]any{"b": "end"}})

	derived := derive(t, p, b, profile.TimeRange{Start: 0, End: 10})
	require.Equal(t, map[string]any{"a": "start", "b": "end"}, derived.Markers[0].Data.(*profile.GenericPayload).Fields)
}

func TestDeriveInstantAndInterval(t *testing.T) {
	p, b := newThread("Main")
	b.Instant("I", 1, 2, nil)
	b.Interval("J", 3, 4, 0, nil)

	derived := derive(t, p, b, profile.TimeRange{Start: 0, End: 10})
	require.Len(t, derived.Markers, 2)
	require.True(t, derived.Markers[0].IsInstant())
	require.Equal(t, 2, derived.Markers[0].Category)
	require.Equal(t, profile.Some(4), derived.Markers[1].End)
	require.False(t, derived.Markers[1].Incomplete)
}

func TestDeriveErrors(t *testing.T) {
	p, b := newThread("Main")
	b.Marker(profile.RawMarker{Name: p.Strings.IndexForString("J"), StartTime: profile.Some(1), Phase: profile.Interval, ThreadID: profile.None})
	_, err := DeriveMarkers(&b.Thread.Markers, p.Strings, 1, profile.TimeRange{End: 10}, nil)
	require.ErrorIs(t, err, ErrMissingTime)

	p, b = newThread("Main")
	b.Marker(profile.RawMarker{Name: p.Strings.IndexForString("J"), StartTime: profile.Some(1), Phase: profile.Phase(9), ThreadID: profile.None})
	_, err = DeriveMarkers(&b.Thread.Markers, p.Strings, 1, profile.TimeRange{End: 10}, nil)
	require.ErrorIs(t, err, ErrUnknownPhase)

	p, b = newThread("Main")
	b.Marker(profile.RawMarker{Name: p.Strings.IndexForString("Load"), StartTime: profile.Some(1), Phase: profile.Interval, Data: &profile.NetworkPayload{ID: 1, Status: profile.NetworkStatusStop}, ThreadID: profile.None})
	_, err = DeriveMarkers(&b.Thread.Markers, p.Strings, 1, profile.TimeRange{End: 10}, nil)
	require.ErrorIs(t, err, ErrMissingTime)
}

func TestDeriveNetwork(t *testing.T) {
	cause := &profile.Cause{Stack: 4}

	p, b := newThread("Main")
	b.Interval("Load 1", 1, 1, 0, &profile.NetworkPayload{ID: 1, Status: profile.NetworkStatusStart, Cause: cause})
	b.Interval("Load 1", 3, 5, 0, &profile.NetworkPayload{ID: 1, Status: profile.NetworkStatusStop, URI: "https://a"})

	derived := derive(t, p, b, profile.TimeRange{Start: 0, End: 10})
	require.Len(t, derived.Markers, 1)
	m := derived.Markers[0]
	require.Equal(t, profile.Time(1), m.Start)
	require.Equal(t, profile.Some(5), m.End)
	require.False(t, m.Incomplete)
	require.Equal(t, []int{0, 1}, derived.RawIndexes[0])

	data := m.Data.(*profile.NetworkPayload)
	require.Equal(t, profile.Time(1), data.StartTime)
	require.Equal(t, profile.Some(3), data.FetchStart)
	require.Equal(t, cause, data.Cause)
	require.Equal(t, "https://a", data.URI)

	// the raw payload is left untouched
	require.False(t, b.Thread.Markers.Data[1].(*profile.NetworkPayload).FetchStart.Valid)
}

func TestDeriveNetworkUnmatched(t *testing.T) {
	p, b := newThread("Main")
	b.Interval("Load 2", 4, 6, 0, &profile.NetworkPayload{ID: 2, Status: profile.NetworkStatusCancel})
	b.Interval("Load 3", 7, 7, 0, &profile.NetworkPayload{ID: 3, Status: profile.NetworkStatusStart})

	derived := derive(t, p, b, profile.TimeRange{Start: 2, End: 10})
	require.Len(t, derived.Markers, 2)

	stopOnly := derived.Markers[0]
	require.True(t, stopOnly.Incomplete)
	require.Equal(t, profile.Time(2), stopOnly.Start)
	require.Equal(t, profile.Some(4), stopOnly.Data.(*profile.NetworkPayload).FetchStart)

	startOnly := derived.Markers[1]
	require.True(t, startOnly.Incomplete)
	require.Equal(t, profile.Some(10), startOnly.End)

	derived = derive(t, p, b, profile.TimeRange{Start: 5, End: 10})
	require.Equal(t, profile.Time(4), derived.Markers[0].Start)
}

func TestDeriveScreenshots(t *testing.T) {
	p, b := newThread("Compositor")
	shot := func(window string) *profile.ScreenshotPayload {
		return &profile.ScreenshotPayload{WindowID: window}
	}
	b.Instant("CompositorScreenshot", 1, 0, shot("w1"))
	b.Instant("CompositorScreenshot", 2, 0, shot("w2"))
	b.Instant("CompositorScreenshot", 3, 0, shot("w1"))
	b.Instant(profile.ScreenshotWindowDestroyed, 5, 0, shot("w1"))

	derived := derive(t, p, b, profile.TimeRange{Start: 0, End: 10})
	require.Len(t, derived.Markers, 4)

	require.Equal(t, profile.Time(1), derived.Markers[0].Start)
	require.Equal(t, profile.Some(3), derived.Markers[0].End)
	require.Equal(t, [][]int{{0}, {2}, {3}, {1}}, derived.RawIndexes)

	require.Equal(t, profile.Time(3), derived.Markers[1].Start)
	require.Equal(t, profile.Some(5), derived.Markers[1].End)

	destroyed := derived.Markers[2]
	require.Equal(t, profile.ScreenshotWindowDestroyed, destroyed.Name)
	require.True(t, destroyed.IsInstant())

	pending := derived.Markers[3]
	require.Equal(t, profile.Time(2), pending.Start)
	require.Equal(t, profile.Some(10), pending.End)
	require.False(t, pending.Incomplete)
}
