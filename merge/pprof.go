package merge

import (
	"math"

	pprofile "github.com/google/pprof/profile"
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

// ToPProf converts the samples of a thread into a pprof profile. Every
// sample records its weight and its weight times interval in
// nanoseconds, so signed diff weights survive the conversion.
func ToPProf(thread *profile.Thread, strings *profile.StringTable, interval profile.Time) (*pprofile.Profile, error) {
	period := int64(math.Round(float64(interval) * 1e6))
	out := &pprofile.Profile{
		SampleType: []*pprofile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "cpu", Unit: "nanoseconds"},
		},
		PeriodType: &pprofile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     period,
	}

	funcs := &thread.FuncTable
	frames := &thread.FrameTable
	stacks := &thread.StackTable

	functions := make([]*pprofile.Function, funcs.Length)
	function := func(index int) (*pprofile.Function, error) {
		if index < 0 || index >= funcs.Length {
			return nil, errs.Errorf("func %d out of range", index)
		}
		if fn := functions[index]; fn != nil {
			return fn, nil
		}
		fn := &pprofile.Function{
			ID:         uint64(len(out.Function) + 1),
			Name:       strings.GetString(funcs.Name[index]),
			SystemName: strings.GetString(funcs.Name[index]),
			Filename:   strings.GetString(funcs.FileName[index]),
		}
		if line := funcs.LineNumber[index]; line > 0 {
			fn.StartLine = int64(line)
		}
		functions[index] = fn
		out.Function = append(out.Function, fn)
		return fn, nil
	}

	locations := make([]*pprofile.Location, frames.Length)
	location := func(index int) (*pprofile.Location, error) {
		if index < 0 || index >= frames.Length {
			return nil, errs.Errorf("frame %d out of range", index)
		}
		if loc := locations[index]; loc != nil {
			return loc, nil
		}
		fn, err := function(frames.Func[index])
		if err != nil {
			return nil, err
		}
		loc := &pprofile.Location{
			ID:   uint64(len(out.Location) + 1),
			Line: []pprofile.Line{{Function: fn}},
		}
		if address := frames.Address[index]; address > 0 {
			loc.Address = uint64(address)
		}
		if line := frames.Line[index]; line > 0 {
			loc.Line[0].Line = int64(line)
		}
		locations[index] = loc
		out.Location = append(out.Location, loc)
		return loc, nil
	}

	samples := &thread.Samples
	for i := 0; i < samples.Length; i++ {
		sample := &pprofile.Sample{}
		for stack := samples.Stack[i]; stack != profile.None; stack = stacks.Prefix[stack] {
			if stack < 0 || stack >= stacks.Length {
				return nil, errs.Errorf("sample %d: stack %d out of range", i, stack)
			}
			loc, err := location(stacks.Frame[stack])
			if err != nil {
				return nil, errs.Errorf("sample %d: %w", i, err)
			}
			sample.Location = append(sample.Location, loc)
		}

		weight := samples.WeightAt(i)
		sample.Value = []int64{
			int64(math.Round(weight)),
			int64(math.Round(weight * float64(period))),
		}
		out.Sample = append(out.Sample, sample)
	}

	if samples.Length > 0 {
		span := samples.Time[samples.Length-1] - samples.Time[0]
		out.DurationNanos = int64(math.Round(float64(span) * 1e6))
	}

	if err := out.CheckValid(); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}
