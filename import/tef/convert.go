package tef

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"loov.dev/profileview/profile"
)

type threadKey struct {
	pid, tid int64
}

type event struct {
	*Event
	frames map[ID]StackFrame
}

type sample struct {
	*Sample
	frames map[ID]StackFrame
}

type converter struct {
	profile *profile.Profile

	processNames map[int64]string
	threadNames  map[threadKey]string
	events       map[threadKey][]event
	samples      map[int64][]sample
	skipped      map[Phase]int
}

// Convert builds a profile with one thread for every pid and tid pair.
// Timestamps are microseconds and become milliseconds. Samples, which
// carry only a tid, go to the first thread with that tid.
func Convert(log *zap.Logger, files ...File) (*profile.Profile, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p := profile.New()
	p.Meta.Product = "Trace Event Format"

	c := &converter{
		profile:      p,
		processNames: make(map[int64]string),
		threadNames:  make(map[threadKey]string),
		events:       make(map[threadKey][]event),
		samples:      make(map[int64][]sample),
		skipped:      make(map[Phase]int),
	}
	for i := range files {
		c.collect(&files[i])
	}

	keys := maps.Keys(c.events)
	for tid := range c.samples {
		if _, ok := c.keyForTID(keys, tid); !ok {
			key := threadKey{pid: tid, tid: tid}
			keys = append(keys, key)
			c.events[key] = nil
		}
	}
	sort.Slice(keys, func(i, k int) bool {
		if keys[i].pid != keys[k].pid {
			return keys[i].pid < keys[k].pid
		}
		return keys[i].tid < keys[k].tid
	})

	for _, key := range keys {
		var samples []sample
		if first, _ := c.keyForTID(keys, key.tid); first == key {
			samples = c.samples[key.tid]
		}
		if err := c.thread(key, c.events[key], samples); err != nil {
			return nil, errs.Errorf("pid %d tid %d: %w", key.pid, key.tid, err)
		}
	}

	phases := maps.Keys(c.skipped)
	sort.Slice(phases, func(i, k int) bool { return phases[i] < phases[k] })
	for _, phase := range phases {
		log.Debug("skipped trace events",
			zap.String("phase", string(phase)),
			zap.Int("count", c.skipped[phase]))
	}
	return p, nil
}

func (c *converter) collect(file *File) {
	for i := range file.TraceEvents {
		ev := &file.TraceEvents[i]
		key := threadKey{pid: ev.ProcessID, tid: ev.ThreadID}
		if ev.Phase == Metadata {
			name, _ := ev.Args["name"].(string)
			switch ev.Name {
			case "process_name":
				c.processNames[ev.ProcessID] = name
			case "thread_name":
				c.threadNames[key] = name
				if _, ok := c.events[key]; !ok {
					c.events[key] = nil
				}
			}
			continue
		}
		if !supported(ev.Phase) {
			c.skipped[ev.Phase]++
			continue
		}
		c.events[key] = append(c.events[key], event{Event: ev, frames: file.StackFrames})
	}
	for i := range file.Samples {
		s := &file.Samples[i]
		c.samples[s.ThreadID] = append(c.samples[s.ThreadID], sample{Sample: s, frames: file.StackFrames})
	}
}

// keyForTID returns the thread with the lowest pid that has tid.
func (c *converter) keyForTID(keys []threadKey, tid int64) (threadKey, bool) {
	var found threadKey
	ok := false
	for _, key := range keys {
		if key.tid == tid && (!ok || key.pid < found.pid) {
			found, ok = key, true
		}
	}
	return found, ok
}

func supported(phase Phase) bool {
	switch phase {
	case DurationBegin, DurationEnd, Complete,
		Instant, DeprecatedInstant, AsyncInstant, Mark,
		AsyncStart, AsyncEnd, DeprecatedAsyncStart, DeprecatedAsyncEnd,
		FlowStart, FlowStep, FlowEnd:
		return true
	}
	return false
}

func (c *converter) thread(key threadKey, events []event, samples []sample) error {
	name := c.threadNames[key]
	if name == "" {
		name = "Thread " + strconv.FormatInt(key.tid, 10)
	}
	b := c.profile.NewThread(name, strconv.FormatInt(key.pid, 10), int(key.tid))
	b.Thread.ProcessName = c.processNames[key.pid]
	b.Thread.IsMainThread = key.pid == key.tid

	sort.SliceStable(events, func(i, k int) bool {
		return events[i].Timestamp < events[k].Timestamp
	})

	// names of the open duration events, E events usually have none
	var open []string
	for _, ev := range events {
		at := micros(ev.Timestamp)
		category := c.category(ev.Category)

		switch ev.Phase {
		case FlowStart, FlowStep, FlowEnd:
			if ev.ID == "" {
				return errs.Errorf("flow event %q at %vus without id", ev.Name, ev.Timestamp)
			}
			b.Instant(ev.Name, at, category, &profile.GenericPayload{
				Kind: flowKind(ev.Phase),
				Fields: map[string]any{
					"flow": b.Strings.IndexForString(string(ev.ID)),
				},
			})
			continue
		}

		data, err := c.payload(b, ev, at)
		if err != nil {
			return err
		}
		switch ev.Phase {
		case DurationBegin:
			open = append(open, ev.Name)
			b.IntervalStart(ev.Name, at, category, data)
		case DurationEnd:
			name := ev.Name
			if n := len(open); n > 0 {
				name, open = open[n-1], open[:n-1]
			}
			b.IntervalEnd(name, at, category, data)
		case Complete:
			b.Interval(ev.Name, at, at+micros(ev.Duration), category, data)
		case Instant, DeprecatedInstant, AsyncInstant, Mark:
			b.Instant(ev.Name, at, category, data)
		case AsyncStart, DeprecatedAsyncStart:
			b.IntervalStart(ev.Name, at, category, data)
		case AsyncEnd, DeprecatedAsyncEnd:
			b.IntervalEnd(ev.Name, at, category, data)
		}
	}

	sort.SliceStable(samples, func(i, k int) bool {
		return samples[i].Timestamp < samples[k].Timestamp
	})
	for _, s := range samples {
		names, category, err := c.frameNames(s.frames, s.StackFrame)
		if err != nil {
			return errs.Errorf("sample at %vus: %w", s.Timestamp, err)
		}
		stack := profile.None
		if len(names) > 0 {
			stack = b.Stack(category, names...)
		}
		weight := s.Weight
		if weight == 0 {
			weight = 1
		}
		b.Sample(stack, micros(s.Timestamp), weight)
	}

	b.Finish()
	return nil
}

func flowKind(phase Phase) string {
	switch phase {
	case FlowStart:
		return "FlowStart"
	case FlowStep:
		return "FlowStep"
	}
	return "FlowEnd"
}

// payload keeps the event args as Tracing fields and turns the event
// stack into the marker cause.
func (c *converter) payload(b *profile.ThreadBuilder, ev event, at profile.Time) (profile.Payload, error) {
	fields := make(map[string]any, len(ev.Args)+1)
	for key, value := range ev.Args {
		fields[key] = value
	}
	if ev.Category != "" {
		fields["category"] = ev.Category
	}
	data := &profile.GenericPayload{Kind: "Tracing", Fields: fields}

	names, category := ev.Stack, c.category(ev.Category)
	if ev.StackFrame != "" {
		var err error
		names, category, err = c.frameNames(ev.frames, ev.StackFrame)
		if err != nil {
			return nil, errs.Errorf("event %q: %w", ev.Name, err)
		}
	}
	if len(names) > 0 {
		data.Cause = &profile.Cause{
			Time:  profile.Some(at),
			Stack: b.Stack(category, names...),
		}
	}
	return data, nil
}

// frameNames returns the function names of a stack frame chain, root
// first, and the category of the leaf frame.
func (c *converter) frameNames(frames map[ID]StackFrame, leaf ID) ([]string, int, error) {
	var names []string
	category := 0
	for id := leaf; id != ""; {
		frame, ok := frames[id]
		if !ok {
			return nil, 0, errs.Errorf("unknown stack frame %q", id)
		}
		if len(names) == 0 {
			category = c.category(frame.Category)
		}
		names = append(names, frame.Name)
		if len(names) > len(frames) {
			return nil, 0, errs.Errorf("stack frame %q has a parent cycle", leaf)
		}
		id = frame.Parent
	}
	for i, k := 0, len(names)-1; i < k; i, k = i+1, k-1 {
		names[i], names[k] = names[k], names[i]
	}
	return names, category, nil
}

// category uses the first of the comma separated event categories.
func (c *converter) category(list string) int {
	name, _, _ := strings.Cut(list, ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	return c.profile.CategoryIndex(name)
}

func micros(us float64) profile.Time { return profile.Time(us / 1000) }
