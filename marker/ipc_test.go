package marker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"loov.dev/profileview/profile"
)

type ipcThreads struct {
	p        *profile.Profile
	parent   *profile.ThreadBuilder
	parentIO *profile.ThreadBuilder
	child    *profile.ThreadBuilder
	childIO  *profile.ThreadBuilder
}

func newIPCThreads() *ipcThreads {
	p := profile.New()
	return &ipcThreads{
		p:        p,
		parent:   p.NewThread("GeckoMain", "1", 10),
		parentIO: p.NewThread("IPC I/O Parent", "1", 11),
		child:    p.NewThread("GeckoMain", "2", 20),
		childIO:  p.NewThread("IPC I/O Child", "2", 21),
	}
}

func ipcMessage(at profile.Time, otherPid string, direction profile.IPCDirection, phase profile.IPCPhase) *profile.IPCPayload {
	return &profile.IPCPayload{
		StartTime:    at,
		EndTime:      at,
		OtherPid:     otherPid,
		MessageType:  "PContent::Msg_Ping",
		MessageSeqno: 7,
		Direction:    direction,
		Phase:        phase,
	}
}

func (th *ipcThreads) send(b *profile.ThreadBuilder, at profile.Time, phase profile.IPCPhase) {
	b.Instant("IPC", at, 0, ipcMessage(at, "2", profile.IPCSending, phase))
}

func (th *ipcThreads) recv(b *profile.ThreadBuilder, at profile.Time, phase profile.IPCPhase) {
	b.Instant("IPC", at, 0, ipcMessage(at, "1", profile.IPCReceiving, phase))
}

func (th *ipcThreads) derive(t *testing.T, ipc *IPCMarkerCorrelations, b *profile.ThreadBuilder) *DerivedMarkers {
	t.Helper()
	derived, err := DeriveMarkers(&b.Thread.Markers, th.p.Strings, b.Thread.TID, profile.TimeRange{Start: 0, End: 10}, ipc)
	require.NoError(t, err)
	return derived
}

func TestCorrelateIPCRoundTrip(t *testing.T) {
	th := newIPCThreads()
	th.send(th.parent, 1, profile.IPCEndpoint)
	th.send(th.parentIO, 2, profile.IPCTransferStart)
	th.send(th.parentIO, 3, profile.IPCTransferEnd)
	th.recv(th.childIO, 4, profile.IPCTransferEnd)
	th.recv(th.child, 5, profile.IPCEndpoint)

	ipc, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.NoError(t, err)
	require.Equal(t, 2, ipc.Len())

	shared, ok := ipc.Get(10, 0)
	require.True(t, ok)
	require.Equal(t, &IPCSharedData{
		StartTime:      profile.Some(1),
		SendStartTime:  profile.Some(2),
		SendEndTime:    profile.Some(3),
		RecvEndTime:    profile.Some(4),
		EndTime:        profile.Some(5),
		SendTID:        10,
		RecvTID:        20,
		SendThreadName: "GeckoMain (Thread ID: 10)",
		RecvThreadName: "GeckoMain (Thread ID: 20)",
	}, shared)

	recvShared, ok := ipc.Get(20, 0)
	require.True(t, ok)
	require.Same(t, shared, recvShared)

	_, ok = ipc.Get(11, 0)
	require.False(t, ok)
	_, ok = ipc.Get(21, 0)
	require.False(t, ok)

	out := th.derive(t, ipc, th.parent)
	require.Len(t, out.Markers, 1)
	require.Equal(t, "IPCOut", out.Markers[0].Name)
	require.Equal(t, profile.Time(1), out.Markers[0].Start)
	require.Equal(t, profile.Some(5), out.Markers[0].End)
	require.False(t, out.Markers[0].Incomplete)
	payload := out.Markers[0].Data.(*IPCMarkerPayload)
	require.Equal(t, "sent to GeckoMain (Thread ID: 20)", payload.NiceDirection)

	in := th.derive(t, ipc, th.child)
	require.Len(t, in.Markers, 1)
	require.Equal(t, "IPCIn", in.Markers[0].Name)
	require.Equal(t, profile.Time(1), in.Markers[0].Start)
	require.Equal(t, profile.Some(5), in.Markers[0].End)
	nice, ok := in.Markers[0].Data.Field("niceDirection")
	require.True(t, ok)
	require.Equal(t, "received from GeckoMain (Thread ID: 10)", nice)

	require.Empty(t, th.derive(t, ipc, th.parentIO).Markers)
	require.Empty(t, th.derive(t, ipc, th.childIO).Markers)
}

func TestCorrelateIPCMissingReceiver(t *testing.T) {
	th := newIPCThreads()
	th.send(th.parent, 1, profile.IPCEndpoint)
	th.send(th.parentIO, 2, profile.IPCTransferStart)
	th.send(th.parentIO, 3, profile.IPCTransferEnd)

	ipc, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.NoError(t, err)
	require.Equal(t, 2, ipc.Len())

	_, ok := ipc.Get(11, 1)
	require.False(t, ok)

	out := th.derive(t, ipc, th.parent)
	require.Len(t, out.Markers, 1)
	require.True(t, out.Markers[0].Incomplete)
	require.Equal(t, profile.Time(1), out.Markers[0].Start)
	require.Equal(t, profile.Some(1), out.Markers[0].End)

	io := th.derive(t, ipc, th.parentIO)
	require.Len(t, io.Markers, 1)
	require.Equal(t, "IPCOut", io.Markers[0].Name)
	require.Equal(t, [][]int{{0}}, io.RawIndexes)
	require.Equal(t, profile.Time(2), io.Markers[0].Start)
	require.True(t, io.Markers[0].Incomplete)
}

func TestCorrelateIPCSync(t *testing.T) {
	th := newIPCThreads()
	msg := ipcMessage(1, "2", profile.IPCSending, profile.IPCEndpoint)
	msg.Sync = true
	th.parent.Instant("IPC", 1, 0, msg)

	ipc, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.NoError(t, err)

	out := th.derive(t, ipc, th.parent)
	require.Equal(t, "SyncIPCOut", out.Markers[0].Name)
	// no receiver thread to name
	require.Equal(t, "sent to 2", out.Markers[0].Data.(*IPCMarkerPayload).NiceDirection)
}

func TestCorrelateIPCDuplicate(t *testing.T) {
	th := newIPCThreads()
	th.send(th.parent, 1, profile.IPCEndpoint)
	th.send(th.parent, 2, profile.IPCEndpoint)
	th.recv(th.child, 5, profile.IPCEndpoint)

	core, logs := observer.New(zapcore.WarnLevel)
	ipc, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, zap.New(core))
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("duplicate IPC marker").Len())

	shared, ok := ipc.Get(10, 0)
	require.True(t, ok)
	require.Equal(t, profile.Some(1), shared.StartTime)
	_, ok = ipc.Get(10, 1)
	require.False(t, ok)
}

func TestCorrelateIPCErrors(t *testing.T) {
	th := newIPCThreads()
	th.recv(th.child, 1, profile.IPCTransferStart)
	_, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.ErrorIs(t, err, ErrIPCReceiveTransferStart)

	th = newIPCThreads()
	th.parent.Instant("IPC", 1, 0, ipcMessage(1, "2", profile.IPCDirection("sideways"), profile.IPCEndpoint))
	_, err = CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.Error(t, err)
}

func TestCorrelateIPCWithoutIPCString(t *testing.T) {
	th := newIPCThreads()
	th.parent.Instant("Other", 1, 0, ipcMessage(1, "2", profile.IPCSending, profile.IPCEndpoint))

	ipc, err := CorrelateIPCMarkers(th.p.Threads, th.p.Strings, nil)
	require.NoError(t, err)
	require.Zero(t, ipc.Len())

	// uncorrelated IPC payloads are dropped
	require.Empty(t, th.derive(t, ipc, th.parent).Markers)
}
