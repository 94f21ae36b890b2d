package main

import (
	"github.com/zeebo/clingy"
	"go.uber.org/zap"

	"loov.dev/profileview/merge"
)

type cmdMerge struct {
	input   inputFlags
	threads string
	out     string
	pprof   string
	path    string
}

func (c *cmdMerge) Setup(params clingy.Parameters) {
	c.threads = params.Flag("threads", "comma separated thread indexes to merge, all when empty", "").(string)
	c.out = params.Flag("out", "write the merged profile here, .gz and .zst are compressed", "-", clingy.Short('o')).(string)
	c.pprof = params.Flag("pprof", "also write the merged thread as a pprof profile", "").(string)
	c.input.setup(params)
	c.path = params.Arg("profile", "profile to read").(string)
}

func (c *cmdMerge) Execute(ctx clingy.Context) error {
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
	result, err := merge.MergeProfileThreads(p, indexes)
	if err != nil {
		return err
	}
	merged := result.Threads[0]
	log.Info("merged threads",
		zap.Ints("threads", indexes),
		zap.Int("samples", merged.Samples.Length),
		zap.Int("markers", merged.Markers.Length))

	if c.pprof != "" {
		if err := writePProf(c.pprof, merged, result); err != nil {
			return err
		}
	}
	return output(ctx, c.out, result)
}
