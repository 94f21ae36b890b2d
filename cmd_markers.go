package main

import (
	"sort"

	"github.com/zeebo/clingy"
	"golang.org/x/exp/maps"

	"loov.dev/profileview/marker"
	"loov.dev/profileview/profile"
)

type cmdMarkers struct {
	input   inputFlags
	threads string
	within  string
	list    bool
	path    string
}

func (c *cmdMarkers) Setup(params clingy.Parameters) {
	c.threads = params.Flag("threads", "comma separated thread indexes, all when empty", "").(string)
	c.within = params.Flag("range", "only markers overlapping start,end in milliseconds", "").(string)
	c.list = params.Flag("list", "print every marker", false, clingy.Short('l'), clingy.Boolean).(bool)
	c.input.setup(params)
	c.path = params.Arg("profile", "profile to read").(string)
}

func (c *cmdMarkers) Execute(ctx clingy.Context) error {
	profiles, log, err := c.input.load(ctx, c.path)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	p := profiles[0]

	indexes, err := threadIndexes(p, c.threads)
	if err != nil {
		return err
	}
	within, err := parseRange(c.within)
	if err != nil {
		return err
	}
	derived, err := marker.DeriveProfile(ctx, p, log)
	if err != nil {
		return err
	}

	out := printer()
	for _, i := range indexes {
		thread, markers := p.Threads[i], derived.Threads[i].Markers

		counts := make(map[string]int)
		incomplete, shown := 0, 0
		for k := range markers {
			m := &markers[k]
			if within != nil && !m.Overlaps(within.Start, within.End) {
				continue
			}
			shown++
			counts[payloadType(m.Data)]++
			if m.Incomplete {
				incomplete++
			}
		}

		out.Fprintf(ctx.Stdout(), "thread %d %q pid %s tid %d: %d markers from %d raw, %d incomplete\n",
			i, thread.Name, thread.PID, thread.TID, shown, thread.Markers.Length, incomplete)
		types := maps.Keys(counts)
		sort.Strings(types)
		for _, t := range types {
			out.Fprintf(ctx.Stdout(), "  %-24s %d\n", t, counts[t])
		}

		if !c.list {
			continue
		}
		for k := range markers {
			m := &markers[k]
			if within != nil && !m.Overlaps(within.Start, within.End) {
				continue
			}
			out.Fprintf(ctx.Stdout(), "  %12.3f %12s  %-16s %s%s\n",
				float64(m.Start), formatEnd(m.End), payloadType(m.Data), m.Name, incompleteSuffix(m))
		}
	}
	return nil
}

func payloadType(data profile.Payload) string {
	if data == nil || data.PayloadType() == "" {
		return "(none)"
	}
	return data.PayloadType()
}

func formatEnd(end profile.NullTime) string {
	if !end.Valid {
		return "instant"
	}
	return printer().Sprintf("%.3f", float64(end.Time))
}

func incompleteSuffix(m *marker.Marker) string {
	if m.Incomplete {
		return " (incomplete)"
	}
	return ""
}
