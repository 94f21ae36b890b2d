package merge

import (
	"loov.dev/profileview/profile"
	"loov.dev/profileview/schema"
)

// translateMarkers copies the markers of src with names, categories,
// string-indexed payload fields and cause stacks translated.
func translateMarkers(src *source, stacks *TranslationMap, fields schema.StringFields) ([]profile.RawMarker, error) {
	table := &src.thread.Markers
	rows := make([]profile.RawMarker, table.Length)

	var tr translator
	cause := func(c *profile.Cause) *profile.Cause {
		if c == nil {
			return nil
		}
		translated := *c
		translated.Stack = tr.row(stacks, c.Stack)
		return &translated
	}

	for i := range rows {
		row := table.Row(i)
		row.Name = tr.str(src.strings, row.Name)
		row.Category = tr.row(src.categories, row.Category)

		switch data := row.Data.(type) {
		case *profile.GenericPayload:
			translated := *data
			translated.Fields = make(map[string]any, len(data.Fields))
			for key, value := range data.Fields {
				translated.Fields[key] = value
			}
			for _, key := range fields[data.Kind] {
				if index, ok := data.Fields[key].(profile.StringIndex); ok {
					translated.Fields[key] = tr.str(src.strings, index)
				}
			}
			translated.Cause = cause(data.Cause)
			row.Data = &translated
		case *profile.NetworkPayload:
			translated := *data
			translated.Cause = cause(data.Cause)
			row.Data = &translated
		case *profile.ScreenshotPayload:
			translated := *data
			translated.URL = tr.str(src.strings, data.URL)
			row.Data = &translated
		}

		if tr.err != nil {
			return nil, tr.err
		}
		rows[i] = row
	}
	return rows, nil
}

func markerTime(m *profile.RawMarker) profile.Time {
	if m.StartTime.Valid {
		return m.StartTime.Time
	}
	return m.EndTime.Time
}

// mergeMarkerRows merges marker lists in time order. The order of the
// markers of one list is kept, so split intervals stay paired.
func mergeMarkerRows(lists [][]profile.RawMarker) profile.RawMarkerTable {
	var table profile.RawMarkerTable
	next := make([]int, len(lists))
	for {
		earliest := -1
		for k, rows := range lists {
			if next[k] >= len(rows) {
				continue
			}
			if earliest < 0 || markerTime(&rows[next[k]]) < markerTime(&lists[earliest][next[earliest]]) {
				earliest = k
			}
		}
		if earliest < 0 {
			break
		}
		table.Append(lists[earliest][next[earliest]])
		next[earliest]++
	}
	return table
}

// shiftMarkers moves every marker and the times in its payload by delta.
// Payloads are copied before they are changed.
func shiftMarkers(table *profile.RawMarkerTable, delta profile.Time) {
	shift := func(t profile.NullTime) profile.NullTime {
		if t.Valid {
			t.Time += delta
		}
		return t
	}
	shiftCause := func(c *profile.Cause) *profile.Cause {
		if c == nil {
			return nil
		}
		shifted := *c
		shifted.Time = shift(c.Time)
		return &shifted
	}

	for i := 0; i < table.Length; i++ {
		table.StartTime[i] = shift(table.StartTime[i])
		table.EndTime[i] = shift(table.EndTime[i])

		switch data := table.Data[i].(type) {
		case *profile.NetworkPayload:
			shifted := *data
			shifted.StartTime += delta
			shifted.EndTime += delta
			shifted.FetchStart = shift(data.FetchStart)
			shifted.Cause = shiftCause(data.Cause)
			table.Data[i] = &shifted
		case *profile.IPCPayload:
			shifted := *data
			shifted.StartTime += delta
			shifted.EndTime += delta
			table.Data[i] = &shifted
		case *profile.GenericPayload:
			if data.Cause != nil {
				shifted := *data
				shifted.Cause = shiftCause(data.Cause)
				table.Data[i] = &shifted
			}
		}
	}
}
