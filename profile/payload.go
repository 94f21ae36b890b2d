package profile

// Payload is the typed data attached to a marker.
type Payload interface {
	// PayloadType is the schema name used to interpret the payload.
	PayloadType() string
	// Field returns the value of a schema field.
	Field(key string) (any, bool)
}

const (
	NetworkType    = "Network"
	ScreenshotType = "CompositorScreenshot"
	IPCType        = "IPC"

	// ScreenshotWindowDestroyed ends the screenshot stream of a window.
	ScreenshotWindowDestroyed = "CompositorScreenshotWindowDestroyed"
)

// Cause is the backtrace that triggered a marker.
type Cause struct {
	Time  NullTime `json:"time"`
	Stack int      `json:"stack"`
}

type NetworkStatus string

const (
	NetworkStatusStart    = NetworkStatus("STATUS_START")
	NetworkStatusStop     = NetworkStatus("STATUS_STOP")
	NetworkStatusRedirect = NetworkStatus("STATUS_REDIRECT")
	NetworkStatusCancel   = NetworkStatus("STATUS_CANCEL")
)

type NetworkPayload struct {
	ID          int64         `json:"id"`
	Status      NetworkStatus `json:"status"`
	URI         string        `json:"URI"`
	Pri         int           `json:"pri"`
	Count       int64         `json:"count,omitempty"`
	ContentType string        `json:"contentType,omitempty"`
	StartTime   Time          `json:"startTime"`
	EndTime     Time          `json:"endTime"`
	FetchStart  NullTime      `json:"fetchStart"`
	Cause       *Cause        `json:"cause,omitempty"`
}

func (p *NetworkPayload) PayloadType() string { return NetworkType }

func (p *NetworkPayload) Field(key string) (any, bool) {
	switch key {
	case "id":
		return p.ID, true
	case "status":
		return string(p.Status), true
	case "URI":
		return p.URI, true
	case "pri":
		return p.Pri, true
	case "count":
		return p.Count, true
	case "contentType":
		return p.ContentType, true
	case "startTime":
		return p.StartTime, true
	case "endTime":
		return p.EndTime, true
	case "fetchStart":
		return p.FetchStart, p.FetchStart.Valid
	}
	return nil, false
}

type ScreenshotPayload struct {
	WindowID     string      `json:"windowID"`
	URL          StringIndex `json:"url"`
	WindowWidth  float64     `json:"windowWidth"`
	WindowHeight float64     `json:"windowHeight"`
}

func (p *ScreenshotPayload) PayloadType() string { return ScreenshotType }

func (p *ScreenshotPayload) Field(key string) (any, bool) {
	switch key {
	case "windowID":
		return p.WindowID, true
	case "url":
		return p.URL, true
	case "windowWidth":
		return p.WindowWidth, true
	case "windowHeight":
		return p.WindowHeight, true
	}
	return nil, false
}

type IPCDirection string

const (
	IPCSending   = IPCDirection("sending")
	IPCReceiving = IPCDirection("receiving")
)

// IPCPhase is empty for endpoint markers written by older producers.
type IPCPhase string

const (
	IPCEndpoint      = IPCPhase("endpoint")
	IPCTransferStart = IPCPhase("transferStart")
	IPCTransferEnd   = IPCPhase("transferEnd")
)

// IPCPayload is one of the up to five physical markers of an IPC message.
type IPCPayload struct {
	StartTime    Time         `json:"startTime"`
	EndTime      Time         `json:"endTime"`
	OtherPid     string       `json:"otherPid"`
	MessageType  string       `json:"messageType"`
	MessageSeqno int64        `json:"messageSeqno"`
	Side         string       `json:"side"`
	Direction    IPCDirection `json:"direction"`
	Phase        IPCPhase     `json:"phase,omitempty"`
	Sync         bool         `json:"sync"`
}

func (p *IPCPayload) PayloadType() string { return IPCType }

func (p *IPCPayload) Field(key string) (any, bool) {
	switch key {
	case "startTime":
		return p.StartTime, true
	case "endTime":
		return p.EndTime, true
	case "otherPid":
		return p.OtherPid, true
	case "messageType":
		return p.MessageType, true
	case "messageSeqno":
		return p.MessageSeqno, true
	case "side":
		return p.Side, true
	case "direction":
		return string(p.Direction), true
	case "phase":
		return string(p.Phase), p.Phase != ""
	case "sync":
		return p.Sync, true
	}
	return nil, false
}

// GenericPayload holds any marker kind without a dedicated type.
// Fields declared as string-table indexes hold StringIndex values.
type GenericPayload struct {
	Kind   string
	Fields map[string]any
	Cause  *Cause
}

func (p *GenericPayload) PayloadType() string { return p.Kind }

func (p *GenericPayload) Field(key string) (any, bool) {
	v, ok := p.Fields[key]
	return v, ok
}

// CausedBy returns the cause attached to p, if any.
func CausedBy(p Payload) *Cause {
	switch p := p.(type) {
	case *NetworkPayload:
		return p.Cause
	case *GenericPayload:
		return p.Cause
	}
	return nil
}

// WithCause returns a shallow copy of p with its cause replaced.
// Payloads that can't carry a cause are returned unchanged.
func WithCause(p Payload, cause *Cause) Payload {
	switch p := p.(type) {
	case *NetworkPayload:
		c := *p
		c.Cause = cause
		return &c
	case *GenericPayload:
		c := *p
		c.Cause = cause
		return &c
	}
	return p
}

// MergePayloads shallow-merges the payloads of an interval start and end;
// fields of end win.
func MergePayloads(start, end Payload) Payload {
	switch {
	case start == nil:
		return end
	case end == nil:
		return start
	}

	s, sok := start.(*GenericPayload)
	e, eok := end.(*GenericPayload)
	if !sok || !eok {
		return end
	}

	merged := &GenericPayload{
		Kind:   e.Kind,
		Fields: make(map[string]any, len(s.Fields)+len(e.Fields)),
		Cause:  e.Cause,
	}
	if merged.Kind == "" {
		merged.Kind = s.Kind
	}
	if merged.Cause == nil {
		merged.Cause = s.Cause
	}
	for k, v := range s.Fields {
		merged.Fields[k] = v
	}
	for k, v := range e.Fields {
		merged.Fields[k] = v
	}
	return merged
}
