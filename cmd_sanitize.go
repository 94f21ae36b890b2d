package main

import (
	"strconv"
	"strings"

	"github.com/zeebo/clingy"
	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"

	"loov.dev/profileview/marker"
)

type cmdSanitize struct {
	input   inputFlags
	threads string
	within  string
	remove  string
	redact  bool
	out     string
	path    string
}

func (c *cmdSanitize) Setup(params clingy.Parameters) {
	c.threads = params.Flag("threads", "comma separated thread indexes to keep, all when empty", "").(string)
	c.within = params.Flag("range", "drop markers outside start,end in milliseconds", "").(string)
	c.remove = params.Flag("delete", "raw markers to drop as thread:index, comma separated", "").(string)
	c.redact = params.Flag("redact", "redact urls, file paths and sanitized strings", true, clingy.Boolean).(bool)
	c.out = params.Flag("out", "write the sanitized profile here, .gz and .zst are compressed", "-", clingy.Short('o')).(string)
	c.input.setup(params)
	c.path = params.Arg("profile", "profile to read").(string)
}

func (c *cmdSanitize) Execute(ctx clingy.Context) error {
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
	deletions, err := parseDeletions(c.remove)
	if err != nil {
		return err
	}
	derived, err := marker.DeriveProfile(ctx, p, log)
	if err != nil {
		return err
	}

	registry := p.Schemas()
	result := *p
	result.Threads = nil
	for _, i := range indexes {
		thread, filtered := marker.Sanitize(p.Threads[i], registry, derived.Threads[i], marker.SanitizeOptions{
			Range:  within,
			Delete: deletions[i],
			Redact: c.redact,
		})
		log.Debug("sanitized thread",
			zap.Int("thread", i),
			zap.Int("before", p.Threads[i].Markers.Length),
			zap.Int("after", filtered.Table.Length))
		result.Threads = append(result.Threads, thread)
	}
	return output(ctx, c.out, &result)
}

// parseDeletions parses "thread:index,..." into a set of raw marker
// indexes per thread.
func parseDeletions(s string) (map[int]map[int]struct{}, error) {
	deletions := make(map[int]map[int]struct{})
	for _, item := range splitList(s) {
		threadPart, indexPart, ok := strings.Cut(item, ":")
		if !ok {
			return nil, errs.Errorf("invalid marker %q, expected thread:index", item)
		}
		thread, err := strconv.Atoi(threadPart)
		if err != nil {
			return nil, errs.Errorf("invalid thread in %q: %w", item, err)
		}
		index, err := strconv.Atoi(indexPart)
		if err != nil {
			return nil, errs.Errorf("invalid marker index in %q: %w", item, err)
		}
		if deletions[thread] == nil {
			deletions[thread] = make(map[int]struct{})
		}
		deletions[thread][index] = struct{}{}
	}
	return deletions, nil
}
