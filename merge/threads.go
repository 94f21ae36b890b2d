package merge

import (
	"strings"

	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

// Input is a thread together with the string table its indexes point to.
type Input struct {
	Thread  *profile.Thread
	Strings *profile.StringTable
}

// MergeThreads combines threads that share categories and libraries into
// a single thread with a new string table. Samples and markers are
// merged in time order; fields lists the string-indexed payload fields
// that are translated into the new table. Every merged marker records
// the tid of the thread it came from.
func MergeThreads(inputs []Input, fields schema.StringFields) (*profile.Thread, *profile.StringTable, error) {
	if len(inputs) == 0 {
		return nil, nil, errs.Errorf("no threads to merge: %w", ErrProfileCount)
	}

	stringTable := profile.NewStringTable()
	sources := make([]*source, len(inputs))
	for i, in := range inputs {
		sources[i] = &source{
			thread:  in.Thread,
			strings: newStringTranslator(in.Strings, stringTable),
		}
	}

	c, err := combineTables(sources)
	if err != nil {
		return nil, nil, err
	}
	samples, err := combineSamplesForMerging(sources, c.stacks)
	if err != nil {
		return nil, nil, err
	}
	lists := make([][]profile.RawMarker, len(sources))
	for k, src := range sources {
		lists[k], err = translateMarkers(src, c.stacks[k], fields)
		if err != nil {
			return nil, nil, errs.Errorf("thread %d markers: %w", k, err)
		}
		for i := range lists[k] {
			if lists[k][i].ThreadID == profile.None {
				lists[k][i].ThreadID = src.thread.TID
			}
		}
	}

	thread := mergedThreadInfo(inputs)
	c.apply(thread)
	thread.Samples = samples
	thread.Markers = mergeMarkerRows(lists)
	return thread, stringTable, nil
}

func mergedThreadInfo(inputs []Input) *profile.Thread {
	first := inputs[0].Thread
	thread := &profile.Thread{
		Name:                "Merged thread",
		ProcessType:         first.ProcessType,
		TID:                 first.TID,
		RegisterTime:        first.RegisterTime,
		ProcessStartupTime:  first.ProcessStartupTime,
		UnregisterTime:      first.UnregisterTime,
		ProcessShutdownTime: first.ProcessShutdownTime,
	}

	var names, pids []string
	seenPid := make(map[string]bool)
	for _, in := range inputs {
		t := in.Thread
		names = append(names, t.FriendlyName())
		if !seenPid[t.PID] {
			seenPid[t.PID] = true
			pids = append(pids, t.PID)
		}

		thread.RegisterTime = thread.RegisterTime.Min(t.RegisterTime)
		thread.ProcessStartupTime = thread.ProcessStartupTime.Min(t.ProcessStartupTime)
		thread.UnregisterTime = laterEnd(thread.UnregisterTime, t.UnregisterTime)
		thread.ProcessShutdownTime = laterEnd(thread.ProcessShutdownTime, t.ProcessShutdownTime)
	}
	thread.ProcessName = strings.Join(names, ", ")
	thread.PID = strings.Join(pids, "+")
	return thread
}

// laterEnd returns the later of two ends; a missing end means the thread
// is still alive.
func laterEnd(a, b profile.NullTime) profile.NullTime {
	if !a.Valid || !b.Valid {
		return profile.NullTime{}
	}
	return profile.Some(a.Time.Max(b.Time))
}

// MergeProfileThreads returns a profile with the selected threads of p
// merged into one.
func MergeProfileThreads(p *profile.Profile, threadIndexes []int) (*profile.Profile, error) {
	if len(threadIndexes) == 0 {
		return nil, errs.Errorf("no threads selected: %w", ErrThreadSelection)
	}
	inputs := make([]Input, len(threadIndexes))
	for i, index := range threadIndexes {
		if index < 0 || index >= len(p.Threads) {
			return nil, errs.Errorf("thread %d of %d: %w", index, len(p.Threads), ErrThreadSelection)
		}
		inputs[i] = Input{Thread: p.Threads[index], Strings: p.Strings}
	}

	thread, stringTable, err := MergeThreads(inputs, p.Schemas().StringFields())
	if err != nil {
		return nil, err
	}
	return &profile.Profile{
		Meta:    p.Meta,
		Libs:    p.Libs,
		Strings: stringTable,
		Threads: []*profile.Thread{thread},
	}, nil
}
