package monkit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

// SpanType is the marker schema of converted spans.
const SpanType = "Span"

type spanKey struct {
	trace TraceID
	span  SpanID
}

// Convert builds a profile with one thread per trace. Spans become
// interval markers with Span payloads; parents and children are linked
// through flow ids. Times are relative to the earliest span.
func Convert(files ...File) (*profile.Profile, error) {
	p := profile.New()
	p.Meta.Product = "monkit"

	byTrace := make(map[TraceID][]*Span)
	seen := make(map[spanKey]bool)
	var earliest UnixNano
	first := true

	for i := range files {
		file := files[i]
		for k := range file {
			span := &file[k]
			if span.Finish < span.Start {
				return nil, errs.Errorf("span %d of trace %d finishes before it starts", span.ID, span.Trace.ID)
			}

			key := spanKey{trace: span.Trace.ID, span: span.ID}
			if seen[key] {
				continue
			}
			seen[key] = true

			if first || span.Start < earliest {
				earliest, first = span.Start, false
			}
			byTrace[span.Trace.ID] = append(byTrace[span.Trace.ID], span)
		}
	}
	p.Meta.StartTime = earliest.Milliseconds()

	traces := make([]TraceID, 0, len(byTrace))
	for id := range byTrace {
		traces = append(traces, id)
	}
	sort.Slice(traces, func(i, k int) bool { return traces[i] < traces[k] })

	for i, traceID := range traces {
		b := p.NewThread("Trace "+strconv.FormatInt(int64(traceID), 10), "1", i+1)
		b.Thread.ProcessName = "monkit"

		spans := byTrace[traceID]
		sort.SliceStable(spans, func(x, y int) bool {
			if spans[x].Start != spans[y].Start {
				return spans[x].Start < spans[y].Start
			}
			return spans[x].Finish > spans[y].Finish
		})
		for _, span := range spans {
			b.Interval(span.Func.Package+" "+span.Func.Name,
				(span.Start - earliest).Milliseconds(),
				(span.Finish - earliest).Milliseconds(),
				p.CategoryIndex(span.Func.Package),
				payload(b.Strings, span))
		}
		b.Finish()
	}
	return p, nil
}

func flowID(trace TraceID, span SpanID) string {
	return strconv.FormatInt(int64(trace), 10) + "/" + strconv.FormatInt(int64(span), 10)
}

func payload(table *profile.StringTable, span *Span) profile.Payload {
	fields := make(map[string]any, len(span.Annotations)+4)
	for _, annotation := range span.Annotations {
		fields[annotation[0]] = annotation[1]
	}
	if len(span.Args) > 0 {
		fields["args"] = strings.Join(span.Args, ", ")
	}
	if span.Orphaned {
		fields["orphaned"] = true
	}
	switch {
	case span.Panicked:
		fields["err"] = "panicked"
	case span.Err != "":
		fields["err"] = span.Err
	}

	fields["trace"] = table.IndexForString(strconv.FormatInt(int64(span.Trace.ID), 10))
	fields["span"] = table.IndexForString(flowID(span.Trace.ID, span.ID))
	// root spans point at the trace
	if span.ParentID != nil && TraceID(*span.ParentID) != span.Trace.ID {
		fields["parent"] = table.IndexForString(flowID(span.Trace.ID, *span.ParentID))
	}
	return &profile.GenericPayload{Kind: SpanType, Fields: fields}
}
