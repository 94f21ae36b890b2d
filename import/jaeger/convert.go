package jaeger

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

// SpanType is the marker schema of converted spans.
const SpanType = "Span"

type span struct {
	*Span
	service string
	id      string
	trace   string
	parent  string
	follows string
}

// Convert builds a profile with one thread per service. Every span
// becomes an interval marker with a Span payload whose trace, span,
// parent and follows fields are flow ids, so the spans of a trace stay
// connected across services. Times are relative to the earliest span.
func Convert(traces ...Trace) (*profile.Profile, error) {
	p := profile.New()
	p.Meta.Product = "Jaeger"

	var spans []span
	seen := make(map[string]bool)
	earliest := Duration(0)

	for i := range traces {
		trace := &traces[i]
		for k := range trace.Spans {
			s, err := convertSpan(trace, &trace.Spans[k])
			if err != nil {
				return nil, err
			}
			if seen[s.id] {
				continue
			}
			seen[s.id] = true

			if len(spans) == 0 {
				earliest = s.StartTime
			}
			earliest = earliest.Min(s.StartTime)
			spans = append(spans, s)
		}
	}
	p.Meta.StartTime = earliest.Milliseconds()

	byService := make(map[string][]span)
	var services []string
	for _, s := range spans {
		if _, ok := byService[s.service]; !ok {
			services = append(services, s.service)
		}
		byService[s.service] = append(byService[s.service], s)
	}
	sort.Strings(services)

	category := p.CategoryIndex(SpanType)
	for i, service := range services {
		b := p.NewThread(service, strconv.Itoa(i+1), i+1)
		b.Thread.ProcessName = service
		b.Thread.IsMainThread = true

		list := byService[service]
		// parents before their children when they start together
		sort.SliceStable(list, func(x, y int) bool {
			if list[x].StartTime != list[y].StartTime {
				return list[x].StartTime < list[y].StartTime
			}
			return list[x].Duration > list[y].Duration
		})
		for _, s := range list {
			start := (s.StartTime - earliest).Milliseconds()
			b.Interval(s.OperationName, start, start+s.Duration.Milliseconds(), category, s.payload(b.Strings))
		}
		b.Finish()
	}
	return p, nil
}

func convertSpan(trace *Trace, source *Span) (span, error) {
	s := span{Span: source}

	id, err := convertTraceSpanID(source.TraceSpanID)
	if err != nil {
		return s, err
	}
	s.id = id
	s.trace, _ = convertTraceID(source.TraceID)

	s.service = string(source.ProcessID)
	if process, ok := trace.Processes[source.ProcessID]; ok && process.ServiceName != "" {
		s.service = process.ServiceName
	}

	for _, ref := range source.References {
		refID, err := convertTraceSpanID(ref.TraceSpanID)
		if err != nil {
			return s, errs.Errorf("span %s reference: %w", id, err)
		}
		switch {
		case ref.RefType == ChildOf && s.parent == "":
			s.parent = refID
		case ref.RefType == FollowsFrom && s.follows == "":
			s.follows = refID
		}
	}
	return s, nil
}

func (s *span) payload(strings *profile.StringTable) profile.Payload {
	fields := map[string]any{
		"trace": strings.IndexForString(s.trace),
		"span":  strings.IndexForString(s.id),
	}
	if s.parent != "" {
		fields["parent"] = strings.IndexForString(s.parent)
	}
	if s.follows != "" {
		fields["follows"] = strings.IndexForString(s.follows)
	}
	if message, failed := spanError(s.Span); failed {
		fields["err"] = message
	}
	return &profile.GenericPayload{Kind: SpanType, Fields: fields}
}

// spanError returns the logged message of a span tagged as failed.
func spanError(span *Span) (string, bool) {
	failed := false
	for _, tag := range span.Tags {
		if tag.Key == "error" {
			failed = tag.Value == true || tag.Value == "true"
		}
	}
	if !failed {
		return "", false
	}
	for _, log := range span.Logs {
		for _, field := range log.Fields {
			if field.Key != "message" && field.Key != "error.object" {
				continue
			}
			if message, ok := field.Value.(string); ok {
				return message, true
			}
		}
	}
	return "error", true
}

// convertTraceSpanID returns the flow id of a span, which is unique
// across traces.
func convertTraceSpanID(id TraceSpanID) (string, error) {
	traceID, err := convertTraceID(id.TraceID)
	if err != nil {
		return "", err
	}
	spanID, err := convertHexID(string(id.SpanID))
	if err != nil {
		return "", errs.Errorf("invalid SpanID %q: %w", id.SpanID, err)
	}
	return traceID + "/" + fmt.Sprintf("%016x", spanID), nil
}

// convertTraceID normalizes 64 and 128 bit trace ids.
func convertTraceID(id TraceID) (string, error) {
	v := string(id)
	if len(v) > 32 {
		return "", errs.Errorf("invalid TraceID %q: longer than 128 bits", id)
	}

	var high uint64
	if len(v) > 16 {
		var err error
		high, err = convertHexID(v[:len(v)-16])
		if err != nil {
			return "", errs.Errorf("invalid TraceID %q: %w", id, err)
		}
		v = v[len(v)-16:]
	}
	low, err := convertHexID(v)
	if err != nil {
		return "", errs.Errorf("invalid TraceID %q: %w", id, err)
	}
	if high != 0 {
		return fmt.Sprintf("%x%016x", high, low), nil
	}
	return fmt.Sprintf("%016x", low), nil
}

// See https://www.jaegertracing.io/docs/1.22/client-libraries/#value
func convertHexID(v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return n, nil
}
