package profile

import (
	"loov.dev/profileview/schema"
)

type Category struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Subcategories []string `json:"subcategories"`
}

type Lib struct {
	Name       string `json:"name"`
	DebugName  string `json:"debugName"`
	Path       string `json:"path"`
	DebugPath  string `json:"debugPath"`
	BreakpadID string `json:"breakpadId"`
	Arch       string `json:"arch,omitempty"`
}

type Meta struct {
	// Interval is the sampling interval in milliseconds.
	Interval     Time            `json:"interval"`
	StartTime    Time            `json:"startTime"`
	Product      string          `json:"product"`
	Categories   []Category      `json:"categories"`
	MarkerSchema []schema.Schema `json:"markerSchema,omitempty"`
}

// Thread is a single profiled thread with its columnar tables.
type Thread struct {
	Name                string   `json:"name"`
	ProcessName         string   `json:"processName,omitempty"`
	ProcessType         string   `json:"processType"`
	PID                 string   `json:"pid"`
	TID                 int      `json:"tid"`
	IsMainThread        bool     `json:"isMainThread"`
	ProcessStartupTime  Time     `json:"processStartupTime"`
	ProcessShutdownTime NullTime `json:"processShutdownTime"`
	RegisterTime        Time     `json:"registerTime"`
	UnregisterTime      NullTime `json:"unregisterTime"`

	Samples       SamplesTable      `json:"samples"`
	Markers       RawMarkerTable    `json:"markers"`
	StackTable    StackTable        `json:"stackTable"`
	FrameTable    FrameTable        `json:"frameTable"`
	FuncTable     FuncTable         `json:"funcTable"`
	ResourceTable ResourceTable     `json:"resourceTable"`
	NativeSymbols NativeSymbolTable `json:"nativeSymbols"`
}

// FriendlyName is the name used for the thread in correlated data.
func (t *Thread) FriendlyName() string {
	if t.IsMainThread && t.ProcessName != "" {
		return t.ProcessName
	}
	return t.Name
}

// TimeRange is the range covered by samples and markers. A thread with
// neither has an empty range at its register time.
func (t *Thread) TimeRange() TimeRange {
	r := InvalidRange
	if t.Samples.Length > 0 {
		r = r.ExpandTime(t.Samples.Time[0])
		r = r.ExpandTime(t.Samples.Time[t.Samples.Length-1])
	}
	for i := 0; i < t.Markers.Length; i++ {
		if start := t.Markers.StartTime[i]; start.Valid {
			r = r.ExpandTime(start.Time)
		}
		if end := t.Markers.EndTime[i]; end.Valid {
			r = r.ExpandTime(end.Time)
		}
	}
	if !r.IsValid() {
		return TimeRange{Start: t.RegisterTime, End: t.RegisterTime}
	}
	return r
}

type Profile struct {
	Meta    Meta         `json:"meta"`
	Libs    []Lib        `json:"libs"`
	Strings *StringTable `json:"strings"`
	Threads []*Thread    `json:"threads"`
}

func New() *Profile {
	return &Profile{
		Meta: Meta{
			Interval: 1,
			Categories: []Category{
				{Name: "Other", Color: "grey", Subcategories: []string{"Other"}},
			},
		},
		Strings: NewStringTable(),
	}
}

// Schemas returns the built-in schemas overridden by the profile's own.
func (p *Profile) Schemas() *schema.Registry {
	return schema.Default().Merge(schema.NewRegistry(p.Meta.MarkerSchema...))
}

func (p *Profile) Validate() error {
	for _, thread := range p.Threads {
		if err := thread.Markers.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeStringFields converts decoded numbers of string-indexed
// generic payload fields back to StringIndex.
func (p *Profile) NormalizeStringFields(fields schema.StringFields) {
	for _, thread := range p.Threads {
		for _, data := range thread.Markers.Data {
			generic, ok := data.(*GenericPayload)
			if !ok {
				continue
			}
			for _, key := range fields[generic.Kind] {
				if v, ok := generic.Fields[key].(float64); ok {
					generic.Fields[key] = StringIndex(v)
				}
			}
		}
	}
}
