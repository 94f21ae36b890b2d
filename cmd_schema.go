package main

import (
	"sort"

	"github.com/zeebo/clingy"
	"github.com/zeebo/errs/v2"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"loov.dev/profileview/schema"
)

type cmdSchema struct {
	input   inputFlags
	derived bool
	profile string
}

func (c *cmdSchema) Setup(params clingy.Parameters) {
	c.profile = params.Flag("profile", "include the schemas carried by this profile", "").(string)
	c.derived = params.Flag("derived", "print the flow and string-indexed fields instead", false, clingy.Boolean).(bool)
	c.input.setup(params)
}

func (c *cmdSchema) Execute(ctx clingy.Context) error {
	registry := schema.Default()
	if c.profile != "" {
		profiles, log, err := c.input.load(ctx, c.profile)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		registry = profiles[0].Schemas()
	} else if c.input.schemaPath != "" {
		extra, err := schema.LoadFile(c.input.schemaPath)
		if err != nil {
			return err
		}
		registry = registry.Merge(extra)
	}

	if !c.derived {
		enc := yaml.NewEncoder(ctx.Stdout())
		enc.SetIndent(2)
		if err := enc.Encode(registry); err != nil {
			return errs.Wrap(err)
		}
		return errs.Wrap(enc.Close())
	}

	out := printer()
	flows := registry.FlowSchemas()
	names := maps.Keys(flows)
	sort.Strings(names)
	for _, name := range names {
		flowSchema := flows[name]
		out.Fprintf(ctx.Stdout(), "%s stack-based=%v\n", name, flowSchema.IsStackBased)
		for _, field := range flowSchema.Fields {
			out.Fprintf(ctx.Stdout(), "  flow %s terminating=%v\n", field.Key, field.IsTerminating)
		}
	}

	fields := registry.StringFields()
	names = maps.Keys(fields)
	sort.Strings(names)
	for _, name := range names {
		out.Fprintf(ctx.Stdout(), "%s string fields %v\n", name, fields[name])
	}
	return nil
}
