package main

import (
	"io"

	"github.com/zeebo/clingy"
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/merge"
	"loov.dev/profileview/profile"
)

type cmdDiff struct {
	input   inputFlags
	threads [2]string
	ranges  [2]string
	names   [2]string
	out     string
	pprof   string
	paths   [2]string
}

func (c *cmdDiff) Setup(params clingy.Parameters) {
	for i, side := range []string{"a", "b"} {
		c.threads[i] = params.Flag("thread-"+side, "thread index of profile "+side, "0").(string)
		c.ranges[i] = params.Flag("range-"+side, "committed range start,end of profile "+side, "").(string)
		c.names[i] = params.Flag("name-"+side, "label of profile "+side, "").(string)
	}
	c.out = params.Flag("out", "write the merged profile here, .gz and .zst are compressed", "-", clingy.Short('o')).(string)
	c.pprof = params.Flag("pprof", "also write the comparison thread as a pprof profile", "").(string)
	c.input.setup(params)
	c.paths[0] = params.Arg("a", "base profile").(string)
	c.paths[1] = params.Arg("b", "compared profile").(string)
}

func (c *cmdDiff) Execute(ctx clingy.Context) error {
	profiles, log, err := c.input.load(ctx, c.paths[:]...)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	states := make([]merge.ProfileState, len(profiles))
	for i := range profiles {
		threads, err := parseInts(c.threads[i])
		if err != nil {
			return err
		}
		committed, err := parseRange(c.ranges[i])
		if err != nil {
			return err
		}
		states[i] = merge.ProfileState{
			Name:            c.names[i],
			SelectedThreads: threads,
			CommittedRange:  committed,
		}
	}

	result, err := merge.MergeProfilesForDiffing(profiles, states, log)
	if err != nil {
		return err
	}

	if c.pprof != "" {
		comparison := result.Threads[len(result.Threads)-1]
		if err := writePProf(c.pprof, comparison, result); err != nil {
			return err
		}
	}
	return output(ctx, c.out, result)
}

func writePProf(path string, thread *profile.Thread, p *profile.Profile) error {
	converted, err := merge.ToPProf(thread, p.Strings, p.Meta.Interval)
	if err != nil {
		return err
	}
	return createFile(path, func(w io.Writer) error {
		return errs.Wrap(converted.Write(w))
	})
}
