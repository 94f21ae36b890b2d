package profile

// CategoryIndex returns the index of the named category, adding it when missing.
func (p *Profile) CategoryIndex(name string) int {
	for i, c := range p.Meta.Categories {
		if c.Name == name {
			return i
		}
	}
	p.Meta.Categories = append(p.Meta.Categories, Category{
		Name:          name,
		Color:         "grey",
		Subcategories: []string{"Other"},
	})
	return len(p.Meta.Categories) - 1
}

// ThreadBuilder appends markers and samples to a thread, interning
// strings in the profile string table.
type ThreadBuilder struct {
	Strings *StringTable
	Thread  *Thread

	span   TimeRange
	stacks map[stackKey]int
	funcs  map[string]int
}

type stackKey struct {
	prefix int
	fn     int
}

// NewThread adds an empty thread to the profile.
func (p *Profile) NewThread(name, pid string, tid int) *ThreadBuilder {
	thread := &Thread{
		Name:        name,
		ProcessType: "default",
		PID:         pid,
		TID:         tid,
	}
	p.Threads = append(p.Threads, thread)
	return &ThreadBuilder{
		Strings: p.Strings,
		Thread:  thread,
		span:    InvalidRange,
		stacks:  make(map[stackKey]int),
		funcs:   make(map[string]int),
	}
}

func (b *ThreadBuilder) Marker(m RawMarker) int {
	if m.StartTime.Valid {
		b.span = b.span.ExpandTime(m.StartTime.Time)
	}
	if m.EndTime.Valid {
		b.span = b.span.ExpandTime(m.EndTime.Time)
	}
	return b.Thread.Markers.Append(m)
}

func (b *ThreadBuilder) Instant(name string, at Time, category int, data Payload) int {
	return b.Marker(RawMarker{
		Name:      b.Strings.IndexForString(name),
		StartTime: Some(at),
		Phase:     Instant,
		Category:  category,
		Data:      data,
		ThreadID:  None,
	})
}

func (b *ThreadBuilder) Interval(name string, start, end Time, category int, data Payload) int {
	return b.Marker(RawMarker{
		Name:      b.Strings.IndexForString(name),
		StartTime: Some(start),
		EndTime:   Some(end),
		Phase:     Interval,
		Category:  category,
		Data:      data,
		ThreadID:  None,
	})
}

func (b *ThreadBuilder) IntervalStart(name string, start Time, category int, data Payload) int {
	return b.Marker(RawMarker{
		Name:      b.Strings.IndexForString(name),
		StartTime: Some(start),
		Phase:     IntervalStart,
		Category:  category,
		Data:      data,
		ThreadID:  None,
	})
}

func (b *ThreadBuilder) IntervalEnd(name string, end Time, category int, data Payload) int {
	return b.Marker(RawMarker{
		Name:     b.Strings.IndexForString(name),
		EndTime:  Some(end),
		Phase:    IntervalEnd,
		Category: category,
		Data:     data,
		ThreadID: None,
	})
}

// Stack returns the stack for the given function names, root first.
func (b *ThreadBuilder) Stack(category int, funcs ...string) int {
	thread := b.Thread
	prefix := None
	for _, name := range funcs {
		fn, ok := b.funcs[name]
		if !ok {
			fn = thread.FuncTable.Append(Func{
				Name:         b.Strings.IndexForString(name),
				Resource:     None,
				FileName:     None,
				LineNumber:   None,
				ColumnNumber: None,
			})
			b.funcs[name] = fn
		}

		key := stackKey{prefix: prefix, fn: fn}
		stack, ok := b.stacks[key]
		if !ok {
			frame := thread.FrameTable.Append(Frame{
				Address:       None,
				Category:      category,
				Subcategory:   0,
				Func:          fn,
				NativeSymbol:  None,
				InnerWindowID: 0,
				Line:          None,
				Column:        None,
			})
			stack = thread.StackTable.Append(frame, prefix)
			b.stacks[key] = stack
		}
		prefix = stack
	}
	return prefix
}

// Sample appends a sample; samples must be added in time order.
func (b *ThreadBuilder) Sample(stack int, at Time, weight float64) {
	samples := &b.Thread.Samples
	if weight != 1 && samples.Weight == nil {
		samples.Weight = make([]float64, samples.Length, samples.Length+1)
		for i := range samples.Weight {
			samples.Weight[i] = 1
		}
	}
	samples.Stack = append(samples.Stack, stack)
	samples.Time = append(samples.Time, at)
	if samples.Weight != nil {
		samples.Weight = append(samples.Weight, weight)
	}
	samples.Length++
	b.span = b.span.ExpandTime(at)
}

// Finish sets the register time from the earliest recorded time.
func (b *ThreadBuilder) Finish() *Thread {
	if b.span.IsValid() {
		b.Thread.RegisterTime = b.span.Start
		b.Thread.ProcessStartupTime = b.span.Start
	}
	return b.Thread
}
