package marker

import (
	"fmt"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"

	"loov.dev/profileview/profile"
)

// IPCSharedData is the timing of one IPC message, shared by every marker
// that describes it.
type IPCSharedData struct {
	StartTime     profile.NullTime
	SendStartTime profile.NullTime
	SendEndTime   profile.NullTime
	RecvEndTime   profile.NullTime
	EndTime       profile.NullTime

	SendTID        int
	RecvTID        int
	SendThreadName string
	RecvThreadName string
}

// IPCMarkerPayload is the payload of a derived IPC marker.
type IPCMarkerPayload struct {
	profile.IPCPayload
	Shared        IPCSharedData
	NiceDirection string
}

func (p *IPCMarkerPayload) PayloadType() string { return profile.IPCType }

func (p *IPCMarkerPayload) Field(key string) (any, bool) {
	switch key {
	case "niceDirection":
		return p.NiceDirection, true
	case "sendThreadName":
		return p.Shared.SendThreadName, p.Shared.SendThreadName != ""
	case "recvThreadName":
		return p.Shared.RecvThreadName, p.Shared.RecvThreadName != ""
	case "sendStartTime":
		return p.Shared.SendStartTime, p.Shared.SendStartTime.Valid
	case "sendEndTime":
		return p.Shared.SendEndTime, p.Shared.SendEndTime.Valid
	case "recvEndTime":
		return p.Shared.RecvEndTime, p.Shared.RecvEndTime.Valid
	}
	return p.IPCPayload.Field(key)
}

type rawMarkerKey struct {
	tid   int
	index int
}

// IPCMarkerCorrelations maps a raw IPC marker to its message data.
type IPCMarkerCorrelations struct {
	shared map[rawMarkerKey]*IPCSharedData
}

func NewIPCMarkerCorrelations() *IPCMarkerCorrelations {
	return &IPCMarkerCorrelations{shared: make(map[rawMarkerKey]*IPCSharedData)}
}

// Get returns the shared data registered for the raw marker index of thread tid.
func (c *IPCMarkerCorrelations) Get(tid, index int) (*IPCSharedData, bool) {
	if c == nil {
		return nil, false
	}
	data, ok := c.shared[rawMarkerKey{tid: tid, index: index}]
	return data, ok
}

func (c *IPCMarkerCorrelations) Len() int {
	if c == nil {
		return 0
	}
	return len(c.shared)
}

func (c *IPCMarkerCorrelations) set(tid, index int, data *IPCSharedData) {
	c.shared[rawMarkerKey{tid: tid, index: index}] = data
}

type ipcMessageID struct {
	sender      string
	receiver    string
	seqno       int64
	messageType string
}

const ipcSlots = 5

type ipcMarkerRef struct {
	tid   int
	index int
	data  *profile.IPCPayload
}

// ipcSlot orders the markers of one message: sender endpoint,
// sender transferStart, sender transferEnd, receiver transferEnd,
// receiver endpoint.
func ipcSlot(data *profile.IPCPayload) (int, error) {
	switch data.Direction {
	case profile.IPCSending:
		switch data.Phase {
		case "", profile.IPCEndpoint:
			return 0, nil
		case profile.IPCTransferStart:
			return 1, nil
		case profile.IPCTransferEnd:
			return 2, nil
		}
	case profile.IPCReceiving:
		switch data.Phase {
		case profile.IPCTransferEnd:
			return 3, nil
		case "", profile.IPCEndpoint:
			return 4, nil
		case profile.IPCTransferStart:
			return 0, ErrIPCReceiveTransferStart
		}
	}
	return 0, errs.Errorf("unknown IPC direction %q with phase %q", data.Direction, data.Phase)
}

// CorrelateIPCMarkers groups the IPC markers of all threads by message.
// Raw IPC markers are named "IPC"; without that string in the table
// there is nothing to correlate.
func CorrelateIPCMarkers(threads []*profile.Thread, strings *profile.StringTable, log *zap.Logger) (*IPCMarkerCorrelations, error) {
	if log == nil {
		log = zap.NewNop()
	}

	correlations := NewIPCMarkerCorrelations()
	if !strings.HasString(profile.IPCType) {
		return correlations, nil
	}

	threadNames := make(map[int]string)
	messages := make(map[ipcMessageID]*[ipcSlots]*ipcMarkerRef)
	var order []ipcMessageID

	for _, thread := range threads {
		if _, ok := threadNames[thread.TID]; !ok {
			threadNames[thread.TID] = fmt.Sprintf("%s (Thread ID: %d)", thread.FriendlyName(), thread.TID)
		}

		markers := &thread.Markers
		for index := 0; index < markers.Length; index++ {
			data, ok := markers.Data[index].(*profile.IPCPayload)
			if !ok {
				continue
			}

			id := ipcMessageID{
				sender:      thread.PID,
				receiver:    data.OtherPid,
				seqno:       data.MessageSeqno,
				messageType: data.MessageType,
			}
			if data.Direction == profile.IPCReceiving {
				id.sender, id.receiver = data.OtherPid, thread.PID
			}

			slot, err := ipcSlot(data)
			if err != nil {
				return nil, errs.Errorf("thread %d marker %d: %w", thread.TID, index, err)
			}

			tuple, ok := messages[id]
			if !ok {
				tuple = new([ipcSlots]*ipcMarkerRef)
				messages[id] = tuple
				order = append(order, id)
			}
			if tuple[slot] != nil {
				log.Warn("duplicate IPC marker",
					zap.Int("tid", thread.TID),
					zap.Int("index", index),
					zap.Int("slot", slot),
					zap.String("messageType", data.MessageType),
					zap.Int64("seqno", data.MessageSeqno))
				continue
			}
			tuple[slot] = &ipcMarkerRef{tid: thread.TID, index: index, data: data}
		}
	}

	startTime := func(ref *ipcMarkerRef) profile.NullTime {
		if ref == nil {
			return profile.NullTime{}
		}
		return profile.Some(ref.data.StartTime)
	}

	for _, id := range order {
		tuple := messages[id]
		start, end := tuple[0], tuple[4]

		shared := &IPCSharedData{
			StartTime:     startTime(start),
			SendStartTime: startTime(tuple[1]),
			SendEndTime:   startTime(tuple[2]),
			RecvEndTime:   startTime(tuple[3]),
			EndTime:       startTime(end),
			SendTID:       profile.None,
			RecvTID:       profile.None,
		}

		added := make(map[int]bool)
		if start != nil {
			shared.SendTID = start.tid
			shared.SendThreadName = threadNames[start.tid]
			correlations.set(start.tid, start.index, shared)
			added[start.tid] = true
		}
		if end != nil {
			shared.RecvTID = end.tid
			shared.RecvThreadName = threadNames[end.tid]
			correlations.set(end.tid, end.index, shared)
			added[end.tid] = true
		}

		// Both endpoints already show the whole message; the I/O thread
		// markers would only duplicate it.
		if start != nil && end != nil {
			continue
		}
		for _, ref := range tuple[1:4] {
			if ref == nil || added[ref.tid] {
				continue
			}
			added[ref.tid] = true
			correlations.set(ref.tid, ref.index, shared)
		}
	}

	return correlations, nil
}
