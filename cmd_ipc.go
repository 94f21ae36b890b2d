package main

import (
	"github.com/zeebo/clingy"
	"go.uber.org/zap"

	"loov.dev/profileview/marker"
)

type cmdIPC struct {
	input   inputFlags
	threads string
	path    string
}

func (c *cmdIPC) Setup(params clingy.Parameters) {
	c.threads = params.Flag("threads", "comma separated thread indexes, all when empty", "").(string)
	c.input.setup(params)
	c.path = params.Arg("profile", "profile to read").(string)
}

func (c *cmdIPC) Execute(ctx clingy.Context) error {
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
	derived, err := marker.DeriveProfile(ctx, p, log)
	if err != nil {
		return err
	}
	log.Info("correlated IPC markers", zap.Int("raw", derived.IPC.Len()))

	out := printer()
	for _, i := range indexes {
		thread := p.Threads[i]
		header := false
		for k := range derived.Threads[i].Markers {
			m := &derived.Threads[i].Markers[k]
			data, ok := m.Data.(*marker.IPCMarkerPayload)
			if !ok {
				continue
			}
			if !header {
				out.Fprintf(ctx.Stdout(), "thread %d %q tid %d\n", i, thread.Name, thread.TID)
				header = true
			}

			kind := "async"
			if data.Sync {
				kind = "sync"
			}
			out.Fprintf(ctx.Stdout(), "  %12.3f %12s  %-5s #%-6d %s %s%s\n",
				float64(m.Start), formatEnd(m.End), kind, data.MessageSeqno,
				data.MessageType, data.NiceDirection, incompleteSuffix(m))
		}
	}
	return nil
}
