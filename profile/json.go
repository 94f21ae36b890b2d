package profile

import (
	"encoding/json"

	"github.com/zeebo/errs/v2"
)

type rawMarkerTableJSON struct {
	Name      []StringIndex     `json:"name"`
	StartTime []NullTime        `json:"startTime"`
	EndTime   []NullTime        `json:"endTime"`
	Phase     []Phase           `json:"phase"`
	Category  []int             `json:"category"`
	Data      []json.RawMessage `json:"data"`
	ThreadID  []int             `json:"threadId,omitempty"`
	Length    int               `json:"length"`
}

func (t RawMarkerTable) MarshalJSON() ([]byte, error) {
	out := rawMarkerTableJSON{
		Name:      t.Name,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		Phase:     t.Phase,
		Category:  t.Category,
		Data:      make([]json.RawMessage, len(t.Data)),
		ThreadID:  t.ThreadID,
		Length:    t.Length,
	}
	for i, data := range t.Data {
		encoded, err := MarshalPayload(data)
		if err != nil {
			return nil, errs.Errorf("marker %d: %w", i, err)
		}
		out.Data[i] = encoded
	}
	return json.Marshal(out)
}

func (t *RawMarkerTable) UnmarshalJSON(data []byte) error {
	var in rawMarkerTableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*t = RawMarkerTable{
		Name:      in.Name,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Phase:     in.Phase,
		Category:  in.Category,
		Data:      make([]Payload, len(in.Data)),
		ThreadID:  in.ThreadID,
		Length:    in.Length,
	}
	for i, raw := range in.Data {
		payload, err := UnmarshalPayload(raw)
		if err != nil {
			return errs.Errorf("marker %d: %w", i, err)
		}
		t.Data[i] = payload
	}
	return nil
}

// MarshalPayload encodes a payload as an object tagged with "type".
func MarshalPayload(p Payload) (json.RawMessage, error) {
	switch p := p.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case *NetworkPayload:
		return json.Marshal(struct {
			Type string `json:"type"`
			*NetworkPayload
		}{NetworkType, p})
	case *ScreenshotPayload:
		return json.Marshal(struct {
			Type string `json:"type"`
			*ScreenshotPayload
		}{ScreenshotType, p})
	case *IPCPayload:
		return json.Marshal(struct {
			Type string `json:"type"`
			*IPCPayload
		}{IPCType, p})
	case *GenericPayload:
		fields := make(map[string]any, len(p.Fields)+2)
		for k, v := range p.Fields {
			fields[k] = v
		}
		fields["type"] = p.Kind
		if p.Cause != nil {
			fields["cause"] = p.Cause
		}
		return json.Marshal(fields)
	}
	return nil, errs.Errorf("payload %T of type %q can't be encoded", p, p.PayloadType())
}

func UnmarshalPayload(data json.RawMessage) (Payload, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Type  string `json:"type"`
		Cause *Cause `json:"cause"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var p Payload
	switch head.Type {
	case NetworkType:
		p = &NetworkPayload{}
	case ScreenshotType:
		p = &ScreenshotPayload{}
	case IPCType:
		p = &IPCPayload{}
	default:
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		delete(fields, "type")
		delete(fields, "cause")
		return &GenericPayload{
			Kind:   head.Type,
			Fields: fields,
			Cause:  head.Cause,
		}, nil
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, errs.Errorf("invalid %s payload: %w", head.Type, err)
	}
	return p, nil
}
