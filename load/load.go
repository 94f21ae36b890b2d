// Package load reads profiles from disk in the native format or converts
// them from foreign trace formats.
package load

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loov.dev/profileview/import/jaeger"
	"loov.dev/profileview/import/monkit"
	"loov.dev/profileview/import/tef"
	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

type Format string

const (
	Auto   Format = "auto"
	Native Format = "profile"
	TEF    Format = "tef"
	Jaeger Format = "jaeger"
	Monkit Format = "monkit"
)

var Formats = []Format{Auto, Native, TEF, Jaeger, Monkit}

// ErrUnknownFormat is returned when the input format can't be determined.
var ErrUnknownFormat = errs.Errorf("unknown input format")

func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Auto, nil
	}
	for _, format := range Formats {
		if string(format) == s {
			return format, nil
		}
	}
	return "", errs.Errorf("%q: %w", s, ErrUnknownFormat)
}

// Options configures how inputs are decoded.
type Options struct {
	Format Format
	// StringFields are string-indexed payload fields in addition to the
	// ones declared by the profile schemas.
	StringFields schema.StringFields
	Log          *zap.Logger
}

func (opts *Options) log() *zap.Logger {
	if opts.Log == nil {
		return zap.NewNop()
	}
	return opts.Log
}

// File reads, decompresses and decodes a single input.
func File(path string, opts Options) (*profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Errorf("failed to read file %q: %w", path, err)
	}
	data, err = Decompress(data)
	if err != nil {
		return nil, errs.Errorf("failed to decompress %q: %w", path, err)
	}
	p, err := Decode(data, opts)
	if err != nil {
		return nil, errs.Errorf("failed to load %q: %w", path, err)
	}

	opts.log().Debug("loaded profile",
		zap.String("path", filepath.Base(path)),
		zap.Int("threads", len(p.Threads)),
		zap.Int("strings", p.Strings.Len()))
	return p, nil
}

// Files loads every path concurrently; profiles are returned in the
// order of paths.
func Files(ctx context.Context, paths []string, opts Options) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, len(paths))
	group, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := File(path, opts)
			if err != nil {
				return err
			}
			profiles[i] = p
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Decode parses uncompressed data. With the Auto format the format is
// detected from the top level JSON keys.
func Decode(data []byte, opts Options) (*profile.Profile, error) {
	format := opts.Format
	if format == "" || format == Auto {
		var err error
		format, err = Detect(data)
		if err != nil {
			return nil, err
		}
	}

	var p *profile.Profile
	var err error
	switch format {
	case Native:
		p, err = decodeNative(data)
	case TEF:
		p, err = decodeTEF(data, opts.log())
	case Jaeger:
		var file jaeger.File
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, errs.Wrap(err)
		}
		p, err = jaeger.Convert(file.Data...)
	case Monkit:
		var file monkit.File
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, errs.Wrap(err)
		}
		p, err = monkit.Convert(file)
	default:
		return nil, errs.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	fields := p.Schemas().StringFields()
	for payloadType, keys := range opts.StringFields {
		fields.Add(payloadType, keys...)
	}
	p.NormalizeStringFields(fields)
	return p, nil
}

func decodeNative(data []byte) (*profile.Profile, error) {
	var p profile.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(err)
	}
	if p.Strings == nil {
		p.Strings = profile.NewStringTable()
	}
	return &p, nil
}

func decodeTEF(data []byte, log *zap.Logger) (*profile.Profile, error) {
	var file tef.File
	if isArray(data) {
		// JSON Array Format, a bare list of events
		if err := json.Unmarshal(data, &file.TraceEvents); err != nil {
			return nil, errs.Wrap(err)
		}
	} else if err := json.Unmarshal(data, &file); err != nil {
		return nil, errs.Wrap(err)
	}
	return tef.Convert(log, file)
}

// Detect guesses the format of uncompressed data.
func Detect(data []byte) (Format, error) {
	if isArray(data) {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return "", errs.Errorf("%w: %v", ErrUnknownFormat, err)
		}
		if len(items) == 0 {
			return "", errs.Errorf("empty list: %w", ErrUnknownFormat)
		}
		first := items[0]
		switch {
		case has(first, "ph"):
			return TEF, nil
		case has(first, "func", "trace"):
			return Monkit, nil
		}
		return "", errs.Errorf("list of unrecognized items: %w", ErrUnknownFormat)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", errs.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	switch {
	case has(fields, "meta", "threads"):
		return Native, nil
	case has(fields, "traceEvents"):
		return TEF, nil
	case has(fields, "data"):
		return Jaeger, nil
	}
	return "", errs.Errorf("object without known keys: %w", ErrUnknownFormat)
}

func has(fields map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			return false
		}
	}
	return true
}

func isArray(data []byte) bool {
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '['
}
