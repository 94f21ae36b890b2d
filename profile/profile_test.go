package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringTable(t *testing.T) {
	strs := NewStringTable("a", "b", "a")
	require.Equal(t, 3, strs.Len())
	require.Equal(t, StringIndex(0), strs.IndexForString("a"))
	require.Equal(t, "a", strs.GetString(2))
	require.True(t, strs.HasString("b"))
	require.False(t, strs.HasString("c"))

	c := strs.IndexForString("c")
	require.Equal(t, StringIndex(3), c)
	require.Equal(t, "", strs.GetString(None))
	require.Equal(t, "", strs.GetString(100))

	clone := strs.Clone()
	clone.IndexForString("d")
	require.False(t, strs.HasString("d"))
}

func TestTimeRange(t *testing.T) {
	r := InvalidRange
	require.False(t, r.IsValid())
	r = r.ExpandTime(5).ExpandTime(2)
	require.Equal(t, TimeRange{Start: 2, End: 5}, r)
	require.Equal(t, Time(3), r.Duration())
	require.True(t, TimeRange{Start: 1, End: 9}.Less(r))
}

func TestRawMarkerTable(t *testing.T) {
	var table RawMarkerTable
	table.Append(RawMarker{Name: 1, StartTime: Some(1), Phase: Instant, ThreadID: None})
	require.Nil(t, table.ThreadID)

	table.Append(RawMarker{Name: 2, StartTime: Some(2), EndTime: Some(3), Phase: Interval, ThreadID: 7})
	require.Equal(t, []int{None, 7}, table.ThreadID)
	require.NoError(t, table.Validate())
	require.Equal(t, 7, table.Row(1).ThreadID)
	require.Equal(t, None, table.Row(0).ThreadID)

	clone := table.Clone()
	clone.Name[0] = 42
	require.Equal(t, StringIndex(1), table.Name[0])

	table.Phase = table.Phase[:1]
	require.Error(t, table.Validate())
}

func TestMergePayloads(t *testing.T) {
	start := &GenericPayload{Kind: "Text", Fields: map[string]any{"a": 1.0, "b": 2.0}, Cause: &Cause{Stack: 3}}
	end := &GenericPayload{Kind: "Text", Fields: map[string]any{"b": 20.0, "c": 30.0}}

	merged := MergePayloads(start, end).(*GenericPayload)
	require.Equal(t, map[string]any{"a": 1.0, "b": 20.0, "c": 30.0}, merged.Fields)
	require.Equal(t, 3, merged.Cause.Stack)

	require.Equal(t, Payload(end), MergePayloads(nil, end))
	require.Equal(t, Payload(start), MergePayloads(start, nil))

	network := &NetworkPayload{ID: 1}
	require.Equal(t, Payload(network), MergePayloads(start, network))
}

func TestProfileJSON(t *testing.T) {
	p := New()
	b := p.NewThread("Main", "1", 1)
	b.Instant("Text", 1, 0, &GenericPayload{Kind: "FlowStart", Fields: map[string]any{"flow": p.Strings.IndexForString("f1")}})
	b.Interval("Load", 2, 4, 0, &NetworkPayload{ID: 5, Status: NetworkStatusStop, URI: "https://example.com", FetchStart: Some(2)})
	b.Instant("IPC", 3, 0, &IPCPayload{OtherPid: "2", Direction: IPCSending, Phase: IPCEndpoint, MessageSeqno: 9})
	b.Instant("Shot", 4, 0, &ScreenshotPayload{WindowID: "w", URL: p.Strings.IndexForString("u")})
	b.Instant("Empty", 5, 0, nil)
	b.Sample(b.Stack(0, "main", "work"), 1, 1)
	b.Finish()

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Profile
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())
	decoded.NormalizeStringFields(p.Schemas().StringFields())

	thread := decoded.Threads[0]
	require.Equal(t, 5, thread.Markers.Length)
	require.Equal(t, "f1", decoded.Strings.GetString(thread.Markers.Data[0].(*GenericPayload).Fields["flow"].(StringIndex)))
	require.Equal(t, &NetworkPayload{ID: 5, Status: NetworkStatusStop, URI: "https://example.com", FetchStart: Some(2)}, thread.Markers.Data[1])
	require.Equal(t, IPCSending, thread.Markers.Data[2].(*IPCPayload).Direction)
	require.Equal(t, "u", decoded.Strings.GetString(thread.Markers.Data[3].(*ScreenshotPayload).URL))
	require.Nil(t, thread.Markers.Data[4])
	require.False(t, thread.Markers.EndTime[0].Valid)
	require.Equal(t, Time(1), thread.RegisterTime)
	require.Equal(t, 2, thread.StackTable.Length)
}

func TestThreadTimeRange(t *testing.T) {
	p := New()
	b := p.NewThread("Main", "1", 1)
	require.Equal(t, TimeRange{}, b.Thread.TimeRange())

	b.Interval("A", 3, 8, 0, nil)
	b.Sample(b.Stack(0, "main"), 1, 1)
	b.Sample(b.Stack(0, "main"), 10, 1)
	require.Equal(t, TimeRange{Start: 1, End: 10}, b.Finish().TimeRange())

	empty := &Thread{RegisterTime: 4}
	require.Equal(t, TimeRange{Start: 4, End: 4}, empty.TimeRange())

	late := &Thread{RegisterTime: 0.5}
	late.Markers.Append(RawMarker{StartTime: Some(3), EndTime: Some(8), Phase: Interval, ThreadID: None})
	require.Equal(t, TimeRange{Start: 3, End: 8}, late.TimeRange())
}
