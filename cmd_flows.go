package main

import (
	"strconv"

	"github.com/zeebo/clingy"
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/flow"
	"loov.dev/profileview/marker"
	"loov.dev/profileview/profile"
)

type cmdFlows struct {
	input inputFlags
	id    string
	at    string
	path  string
}

func (c *cmdFlows) Setup(params clingy.Parameters) {
	c.id = params.Flag("id", "show the connections and timing rows of a flow id", "").(string)
	c.at = params.Flag("at", "with --id, only the flow instance active at this time", "").(string)
	c.input.setup(params)
	c.path = params.Arg("profile", "profile to read").(string)
}

func (c *cmdFlows) Execute(ctx clingy.Context) error {
	profiles, log, err := c.input.load(ctx, c.path)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	p := profiles[0]

	derived, err := marker.DeriveProfile(ctx, p, log)
	if err != nil {
		return err
	}
	info, err := flow.ComputeProfileFlowInfo(derived.Markers(), p.Strings, p.Schemas().FlowSchemas(), log)
	if err != nil {
		return err
	}

	if c.id == "" {
		return c.summary(ctx, info)
	}

	flows := info.FlowsByID[c.id]
	if c.at != "" {
		at, err := strconv.ParseFloat(c.at, 64)
		if err != nil {
			return errs.Errorf("invalid --at %q: %w", c.at, err)
		}
		index, ok := info.LookupFlow(c.id, profile.Time(at))
		if !ok {
			return errs.Errorf("no flow %q at %v", c.id, at)
		}
		flows = []int{index}
	}
	if len(flows) == 0 {
		return errs.Errorf("no flow %q", c.id)
	}
	for _, index := range flows {
		c.detail(ctx, p, derived, info, index)
	}
	return nil
}

func (c *cmdFlows) summary(ctx clingy.Context, info *flow.ProfileFlowInfo) error {
	out := printer()
	ids := info.IDs()
	out.Fprintf(ctx.Stdout(), "%d flows with %d ids\n", len(info.Flows), len(ids))
	for _, id := range ids {
		markers := 0
		for _, index := range info.FlowsByID[id] {
			markers += len(info.Flows[index].FlowMarkers)
		}
		out.Fprintf(ctx.Stdout(), "  %-40s %4d flows %6d markers\n", id, len(info.FlowsByID[id]), markers)
	}
	return nil
}

func (c *cmdFlows) detail(ctx clingy.Context, p *profile.Profile, derived *marker.ProfileMarkers, info *flow.ProfileFlowInfo, index int) {
	out := printer()
	f := &info.Flows[index]
	out.Fprintf(ctx.Stdout(), "flow %d %q %.3f-%.3f\n", index, f.ID, float64(f.StartTime), float64(f.EndTime))

	for _, ref := range f.FlowMarkers {
		fm := info.FlowMarker(ref)
		m := &derived.Threads[ref.ThreadIndex].Markers[fm.MarkerIndex]
		out.Fprintf(ctx.Stdout(), "  %12.3f %-20s %s\n", float64(fm.StartTime), p.Threads[ref.ThreadIndex].Name, m.Name)
	}

	connected := info.ConnectedFlowInfo(index)
	out.Fprintf(ctx.Stdout(), "  directly connected %v\n  incoming context %v\n  outgoing context %v\n",
		connected.DirectlyConnected, connected.IncomingContext, connected.OutgoingContext)

	timing := flow.ComputeFlowTiming(info, []int{index})
	for _, row := range timing.Rows {
		out.Fprintf(ctx.Stdout(), "  row %-18s flow %-4d %q %d markers\n",
			row.Type, row.FlowIndex, info.Flows[row.FlowIndex].ID, row.Markers.Length)
	}
	if len(f.FlowMarkers) > 0 {
		arrows := timing.ArrowsRelatedToMarker(info, f.FlowMarkers[0])
		out.Fprintf(ctx.Stdout(), "  %d arrows from the first marker\n", len(arrows))
	}
}
