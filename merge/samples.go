package merge

import (
	"loov.dev/profileview/profile"
)

// FilterSamplesToRange returns the samples taken in [start, end).
func FilterSamplesToRange(samples *profile.SamplesTable, start, end profile.Time) profile.SamplesTable {
	filtered := profile.SamplesTable{WeightType: samples.WeightType}
	if samples.Weight != nil {
		filtered.Weight = []float64{}
	}
	for i := 0; i < samples.Length; i++ {
		at := samples.Time[i]
		if at < start || at >= end {
			continue
		}
		filtered.Stack = append(filtered.Stack, samples.Stack[i])
		filtered.Time = append(filtered.Time, at)
		if samples.Weight != nil {
			filtered.Weight = append(filtered.Weight, samples.Weight[i])
		}
		filtered.Length++
	}
	return filtered
}

// translateSamples copies samples with their stacks translated.
func translateSamples(samples *profile.SamplesTable, stacks *TranslationMap) (profile.SamplesTable, error) {
	translated := profile.SamplesTable{
		Stack:      make([]int, samples.Length),
		Time:       append([]profile.Time(nil), samples.Time...),
		WeightType: samples.WeightType,
		Length:     samples.Length,
	}
	if samples.Weight != nil {
		translated.Weight = append([]float64(nil), samples.Weight...)
	}
	var tr translator
	for i, stack := range samples.Stack {
		translated.Stack[i] = tr.row(stacks, stack)
	}
	return translated, tr.err
}

// combineSamplesDiffing interleaves the samples of two threads in time
// order. Weights of the first thread are negated, and both are scaled by
// their multiplier, so identical threads sum up to zero.
func combineSamplesDiffing(samples [2]*profile.SamplesTable, stacks [2]*TranslationMap, multipliers [2]float64) (profile.SamplesTable, error) {
	combined := profile.SamplesTable{
		Weight:     []float64{},
		WeightType: samples[0].WeightType,
	}
	signs := [2]float64{-1, 1}

	var tr translator
	var next [2]int
	for next[0] < samples[0].Length || next[1] < samples[1].Length {
		k := 0
		switch {
		case next[0] >= samples[0].Length:
			k = 1
		case next[1] >= samples[1].Length:
			k = 0
		case samples[1].Time[next[1]] < samples[0].Time[next[0]]:
			k = 1
		}

		i := next[k]
		next[k]++
		combined.Stack = append(combined.Stack, tr.row(stacks[k], samples[k].Stack[i]))
		combined.Time = append(combined.Time, samples[k].Time[i])
		combined.Weight = append(combined.Weight, signs[k]*multipliers[k]*samples[k].WeightAt(i))
		combined.Length++
	}
	return combined, tr.err
}

// combineSamplesForMerging merges the samples of every source in time
// order by repeatedly picking the earliest head sample.
func combineSamplesForMerging(sources []*source, stacks []*TranslationMap) (profile.SamplesTable, error) {
	var combined profile.SamplesTable
	weighted := false
	for _, src := range sources {
		if src.thread.Samples.Weight != nil {
			weighted = true
		}
		if combined.WeightType == "" {
			combined.WeightType = src.thread.Samples.WeightType
		}
	}
	if weighted {
		combined.Weight = []float64{}
	}

	var tr translator
	next := make([]int, len(sources))
	for {
		earliest := -1
		for k, src := range sources {
			samples := &src.thread.Samples
			if next[k] >= samples.Length {
				continue
			}
			if earliest < 0 || samples.Time[next[k]] < sources[earliest].thread.Samples.Time[next[earliest]] {
				earliest = k
			}
		}
		if earliest < 0 {
			break
		}

		samples := &sources[earliest].thread.Samples
		i := next[earliest]
		next[earliest]++
		combined.Stack = append(combined.Stack, tr.row(stacks[earliest], samples.Stack[i]))
		combined.Time = append(combined.Time, samples.Time[i])
		if weighted {
			combined.Weight = append(combined.Weight, samples.WeightAt(i))
		}
		combined.Length++
	}
	return combined, tr.err
}

// shiftSamples moves every sample by delta.
func shiftSamples(samples *profile.SamplesTable, delta profile.Time) {
	for i := range samples.Time {
		samples.Time[i] += delta
	}
}
