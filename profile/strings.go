package profile

import "encoding/json"

type StringIndex int

// StringTable interns strings shared by every thread of a profile.
type StringTable struct {
	strings []string
	index   map[string]StringIndex
}

// NewStringTable keeps the position of every given string, duplicates
// included, so that indexes from a serialized table stay valid.
func NewStringTable(strs ...string) *StringTable {
	t := &StringTable{
		strings: make([]string, 0, len(strs)),
		index:   make(map[string]StringIndex, len(strs)),
	}
	for _, s := range strs {
		if _, ok := t.index[s]; !ok {
			t.index[s] = StringIndex(len(t.strings))
		}
		t.strings = append(t.strings, s)
	}
	return t
}

func (t *StringTable) IndexForString(s string) StringIndex {
	if index, ok := t.index[s]; ok {
		return index
	}
	index := StringIndex(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = index
	return index
}

func (t *StringTable) GetString(index StringIndex) string {
	if index < 0 || int(index) >= len(t.strings) {
		return ""
	}
	return t.strings[index]
}

func (t *StringTable) HasString(s string) bool {
	_, ok := t.index[s]
	return ok
}

func (t *StringTable) Len() int { return len(t.strings) }

// Strings returns a copy of the underlying array.
func (t *StringTable) Strings() []string {
	return append([]string(nil), t.strings...)
}

func (t *StringTable) Clone() *StringTable {
	return NewStringTable(t.strings...)
}

func (t *StringTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.strings)
}

func (t *StringTable) UnmarshalJSON(data []byte) error {
	var strs []string
	if err := json.Unmarshal(data, &strs); err != nil {
		return err
	}
	*t = *NewStringTable(strs...)
	return nil
}
