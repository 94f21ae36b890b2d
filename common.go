package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zeebo/clingy"
	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loov.dev/profileview/load"
	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

// logFlags are accepted by every command.
type logFlags struct {
	level string
	json  bool
}

func (f *logFlags) setup(params clingy.Parameters) {
	f.level = params.Flag("log-level", "minimum level of diagnostics: debug, info, warn or error", "warn").(string)
	f.json = params.Flag("log-json", "write diagnostics as JSON", false, clingy.Boolean).(bool)
}

func (f *logFlags) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(f.level)
	if err != nil {
		return nil, errs.Errorf("invalid --log-level: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	if f.json {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	log, err := config.Build()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return log, nil
}

// inputFlags configure how input profiles are read.
type inputFlags struct {
	logFlags
	format       string
	schemaPath   string
	stringFields string
}

func (f *inputFlags) setup(params clingy.Parameters) {
	f.format = params.Flag("format", "input format: auto, profile, tef, jaeger or monkit", "auto").(string)
	f.schemaPath = params.Flag("schema", "YAML file with additional marker schemas", "").(string)
	f.stringFields = params.Flag("string-fields", "extra string-indexed payload fields as Type.key, comma separated", "").(string)
	f.logFlags.setup(params)
}

// options returns the load options and the extra schemas to apply to
// every loaded profile.
func (f *inputFlags) options(log *zap.Logger) (load.Options, *schema.Registry, error) {
	format, err := load.ParseFormat(f.format)
	if err != nil {
		return load.Options{}, nil, err
	}

	var extra *schema.Registry
	fields := schema.StringFields{}
	if f.schemaPath != "" {
		extra, err = schema.LoadFile(f.schemaPath)
		if err != nil {
			return load.Options{}, nil, err
		}
		for payloadType, keys := range extra.StringFields() {
			fields.Add(payloadType, keys...)
		}
	}
	for _, field := range splitList(f.stringFields) {
		payloadType, key, ok := strings.Cut(field, ".")
		if !ok || payloadType == "" || key == "" {
			return load.Options{}, nil, errs.Errorf("invalid string field %q, expected Type.key", field)
		}
		fields.Add(payloadType, key)
	}

	return load.Options{
		Format:       format,
		StringFields: fields,
		Log:          log,
	}, extra, nil
}

func (f *inputFlags) load(ctx clingy.Context, paths ...string) ([]*profile.Profile, *zap.Logger, error) {
	log, err := f.logger()
	if err != nil {
		return nil, nil, err
	}
	opts, extra, err := f.options(log)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := load.Files(ctx, paths, opts)
	if err != nil {
		return nil, nil, err
	}
	if extra != nil {
		for _, p := range profiles {
			p.Meta.MarkerSchema = schema.NewRegistry(p.Meta.MarkerSchema...).Merge(extra).Schemas()
		}
	}
	return profiles, log, nil
}

// output writes profiles to a file or, for "" and "-", to stdout.
func output(ctx clingy.Context, path string, p *profile.Profile) error {
	if path == "" || path == "-" {
		return load.Encode(ctx.Stdout(), path, p)
	}
	return load.Write(path, p)
}

func createFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = errs.Wrap(closeErr)
		}
	}()
	return write(f)
}

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseInts(s string) ([]int, error) {
	var values []int
	for _, item := range splitList(s) {
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, errs.Errorf("invalid number %q: %w", item, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// parseRange parses "start,end" in milliseconds; empty means no range.
func parseRange(s string) (*profile.TimeRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	items := splitList(s)
	if len(items) != 2 {
		return nil, errs.Errorf("invalid range %q, expected start,end", s)
	}
	start, err := strconv.ParseFloat(items[0], 64)
	if err != nil {
		return nil, errs.Errorf("invalid range start %q: %w", items[0], err)
	}
	end, err := strconv.ParseFloat(items[1], 64)
	if err != nil {
		return nil, errs.Errorf("invalid range end %q: %w", items[1], err)
	}
	if end < start {
		return nil, errs.Errorf("range %q ends before it starts", s)
	}
	return &profile.TimeRange{Start: profile.Time(start), End: profile.Time(end)}, nil
}

// threadIndexes resolves a list of thread indexes, all threads when empty.
func threadIndexes(p *profile.Profile, s string) ([]int, error) {
	indexes, err := parseInts(s)
	if err != nil {
		return nil, err
	}
	if len(indexes) == 0 {
		for i := range p.Threads {
			indexes = append(indexes, i)
		}
	}
	for _, i := range indexes {
		if i < 0 || i >= len(p.Threads) {
			return nil, errs.Errorf("thread %d out of range, the profile has %d threads", i, len(p.Threads))
		}
	}
	return indexes, nil
}
