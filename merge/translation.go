// Package merge combines threads of one or more profiles into a single
// thread, either as a union or as a signed difference.
package merge

import (
	"github.com/zeebo/errs/v2"

	"loov.dev/profileview/profile"
)

var (
	// ErrMissingTranslation means a combination stage ran before the stage
	// it depends on.
	ErrMissingTranslation = errs.Errorf("missing translation")
	// ErrThreadSelection means a diffed profile doesn't select exactly one
	// thread.
	ErrThreadSelection = errs.Errorf("invalid thread selection")
	// ErrProfileCount means the profiles and their states don't match up.
	ErrProfileCount = errs.Errorf("invalid profile count")
	// ErrInterval means a diffed profile has no positive sampling interval.
	ErrInterval = errs.Errorf("invalid sampling interval")
)

const untranslated = -2

// TranslationMap maps the rows of a source table to the rows of a
// combined table. A nil map translates every row to itself.
type TranslationMap struct {
	table string
	rows  []int
}

func newTranslationMap(table string, length int) *TranslationMap {
	rows := make([]int, length)
	for i := range rows {
		rows[i] = untranslated
	}
	return &TranslationMap{table: table, rows: rows}
}

func (m *TranslationMap) set(old, new int) { m.rows[old] = new }

// Get translates a source row. profile.None translates to itself.
func (m *TranslationMap) Get(old int) (int, error) {
	if m == nil || old == profile.None {
		return old, nil
	}
	if old < 0 || old >= len(m.rows) || m.rows[old] == untranslated {
		return 0, errs.Errorf("%s %d: %w", m.table, old, ErrMissingTranslation)
	}
	return m.rows[old], nil
}

// Len is the number of source rows.
func (m *TranslationMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// stringTranslator re-interns strings of one table into another.
type stringTranslator struct {
	from, to *profile.StringTable
	cache    map[profile.StringIndex]profile.StringIndex
}

func newStringTranslator(from, to *profile.StringTable) *stringTranslator {
	return &stringTranslator{
		from:  from,
		to:    to,
		cache: make(map[profile.StringIndex]profile.StringIndex),
	}
}

func (s *stringTranslator) get(index profile.StringIndex) (profile.StringIndex, error) {
	if index == profile.None || s.from == s.to {
		return index, nil
	}
	if translated, ok := s.cache[index]; ok {
		return translated, nil
	}
	if index < 0 || int(index) >= s.from.Len() {
		return 0, errs.Errorf("string %d: %w", index, ErrMissingTranslation)
	}
	translated := s.to.IndexForString(s.from.GetString(index))
	s.cache[index] = translated
	return translated, nil
}
