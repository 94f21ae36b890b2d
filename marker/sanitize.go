package marker

import (
	"path"
	"regexp"
	"strings"

	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

type SanitizeOptions struct {
	// Range drops markers that don't overlap it.
	Range *profile.TimeRange
	// Delete drops raw marker rows.
	Delete map[int]struct{}
	// Redact replaces url, file-path and sanitized-string fields.
	Redact bool
}

// Sanitize returns a shallow clone of thread with its marker table
// filtered and redacted. The input thread and its payloads are left as is.
func Sanitize(thread *profile.Thread, registry *schema.Registry, derived *DerivedMarkers, opts SanitizeOptions) (*profile.Thread, *Filtered) {
	clone := *thread

	filtered := FilterRawMarkerTableWithDeletions(&thread.Markers, derived, opts.Delete, opts.Range)
	if filtered.Table == &thread.Markers {
		filtered.Table = thread.Markers.Clone()
	}
	clone.Markers = *filtered.Table
	filtered.Table = &clone.Markers

	if opts.Redact {
		data := clone.Markers.Data
		for i, payload := range data {
			data[i] = redactPayload(payload, registry)
		}
	}
	return &clone, filtered
}

func redactPayload(payload profile.Payload, registry *schema.Registry) profile.Payload {
	switch p := payload.(type) {
	case *profile.NetworkPayload:
		c := *p
		c.URI = RemoveURLs(c.URI)
		return &c
	case *profile.GenericPayload:
		var fields map[string]any
		for key, value := range p.Fields {
			s, ok := value.(string)
			if !ok {
				continue
			}
			format, ok := registry.FieldFormat(p.Kind, key)
			if !ok {
				continue
			}
			redacted := redact(format, s)
			if redacted == s {
				continue
			}
			if fields == nil {
				fields = make(map[string]any, len(p.Fields))
				for k, v := range p.Fields {
					fields[k] = v
				}
			}
			fields[key] = redacted
		}
		if fields == nil {
			return p
		}
		c := *p
		c.Fields = fields
		return &c
	}
	return payload
}

func redact(format schema.Format, s string) string {
	switch format {
	case schema.FormatURL:
		return RemoveURLs(s)
	case schema.FormatFilePath:
		return RemoveFilePath(s)
	case schema.FormatSanitizedString:
		return "<sanitized>"
	}
	return s
}

var urlPattern = regexp.MustCompile(`(?i)\b((?:https?|ftp|file|moz-extension|chrome-extension)://)[^\s"']+`)

// RemoveURLs replaces everything after the scheme of every URL in s.
func RemoveURLs(s string) string {
	return urlPattern.ReplaceAllString(s, "${1}<URL>")
}

// RemoveFilePath keeps only the last element of a path.
func RemoveFilePath(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, `\`, "/")
	return "<PATH>/" + path.Base(s)
}
