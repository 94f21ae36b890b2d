package merge

import (
	"loov.dev/profileview/profile"
)

// source is one thread taking part in a combination, with the maps from
// its profile-level tables into the combined profile.
type source struct {
	thread     *profile.Thread
	strings    *stringTranslator
	categories *TranslationMap
	libs       *TranslationMap
}

// translator translates references and keeps the first error.
type translator struct {
	err error
}

func (t *translator) row(m *TranslationMap, old int) int {
	if t.err != nil {
		return old
	}
	v, err := m.Get(old)
	if err != nil {
		t.err = err
	}
	return v
}

func (t *translator) str(s *stringTranslator, old profile.StringIndex) profile.StringIndex {
	if t.err != nil {
		return old
	}
	v, err := s.get(old)
	if err != nil {
		t.err = err
	}
	return v
}

// mergeCategories merges categories by name. The first category with a
// name wins; later ones map onto it.
func mergeCategories(lists ...[]profile.Category) ([]profile.Category, []*TranslationMap) {
	var merged []profile.Category
	byName := make(map[string]int)
	maps := make([]*TranslationMap, len(lists))
	for i, categories := range lists {
		m := newTranslationMap("category", len(categories))
		for k, category := range categories {
			index, ok := byName[category.Name]
			if !ok {
				index = len(merged)
				byName[category.Name] = index
				merged = append(merged, category)
			}
			m.set(k, index)
		}
		maps[i] = m
	}
	return merged, maps
}

type libKey struct {
	name      string
	debugName string
}

// mergeLibs merges libraries by name and debug name.
func mergeLibs(lists ...[]profile.Lib) ([]profile.Lib, []*TranslationMap) {
	var merged []profile.Lib
	byKey := make(map[libKey]int)
	maps := make([]*TranslationMap, len(lists))
	for i, libs := range lists {
		m := newTranslationMap("lib", len(libs))
		for k, lib := range libs {
			key := libKey{name: lib.Name, debugName: lib.DebugName}
			index, ok := byKey[key]
			if !ok {
				index = len(merged)
				byKey[key] = index
				merged = append(merged, lib)
			}
			m.set(k, index)
		}
		maps[i] = m
	}
	return merged, maps
}

// combined holds the call tree tables shared by several source threads,
// with one translation map per source and table.
type combined struct {
	Resources     profile.ResourceTable
	NativeSymbols profile.NativeSymbolTable
	Funcs         profile.FuncTable
	Frames        profile.FrameTable
	Stacks        profile.StackTable

	resources     []*TranslationMap
	nativeSymbols []*TranslationMap
	funcs         []*TranslationMap
	frames        []*TranslationMap
	stacks        []*TranslationMap
}

// combineTables combines the call tree tables of sources, deduplicating
// identical rows. Every stage depends on the maps of the stages before
// it: resources and native symbols, then funcs, frames and stacks.
func combineTables(sources []*source) (*combined, error) {
	c := &combined{}
	for _, stage := range []func([]*source) error{
		c.combineResources,
		c.combineNativeSymbols,
		c.combineFuncs,
		c.combineFrames,
		c.combineStacks,
	} {
		if err := stage(sources); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *combined) combineResources(sources []*source) error {
	seen := make(map[profile.Resource]int)
	for _, src := range sources {
		table := &src.thread.ResourceTable
		m := newTranslationMap("resource", table.Length)
		var tr translator
		for i := 0; i < table.Length; i++ {
			row := table.Row(i)
			row.Lib = tr.row(src.libs, row.Lib)
			row.Name = tr.str(src.strings, row.Name)
			row.Host = tr.str(src.strings, row.Host)
			if tr.err != nil {
				return tr.err
			}
			index, ok := seen[row]
			if !ok {
				index = c.Resources.Append(row)
				seen[row] = index
			}
			m.set(i, index)
		}
		c.resources = append(c.resources, m)
	}
	return nil
}

func (c *combined) combineNativeSymbols(sources []*source) error {
	seen := make(map[profile.NativeSymbol]int)
	for _, src := range sources {
		table := &src.thread.NativeSymbols
		m := newTranslationMap("native symbol", table.Length)
		var tr translator
		for i := 0; i < table.Length; i++ {
			row := table.Row(i)
			row.LibIndex = tr.row(src.libs, row.LibIndex)
			row.Name = tr.str(src.strings, row.Name)
			if tr.err != nil {
				return tr.err
			}
			index, ok := seen[row]
			if !ok {
				index = c.NativeSymbols.Append(row)
				seen[row] = index
			}
			m.set(i, index)
		}
		c.nativeSymbols = append(c.nativeSymbols, m)
	}
	return nil
}

func (c *combined) combineFuncs(sources []*source) error {
	seen := make(map[profile.Func]int)
	for k, src := range sources {
		table := &src.thread.FuncTable
		m := newTranslationMap("func", table.Length)
		var tr translator
		for i := 0; i < table.Length; i++ {
			row := table.Row(i)
			row.Name = tr.str(src.strings, row.Name)
			row.FileName = tr.str(src.strings, row.FileName)
			row.Resource = tr.row(c.resources[k], row.Resource)
			if tr.err != nil {
				return tr.err
			}
			index, ok := seen[row]
			if !ok {
				index = c.Funcs.Append(row)
				seen[row] = index
			}
			m.set(i, index)
		}
		c.funcs = append(c.funcs, m)
	}
	return nil
}

func (c *combined) combineFrames(sources []*source) error {
	seen := make(map[profile.Frame]int)
	for k, src := range sources {
		table := &src.thread.FrameTable
		m := newTranslationMap("frame", table.Length)
		var tr translator
		for i := 0; i < table.Length; i++ {
			row := table.Row(i)
			row.Func = tr.row(c.funcs[k], row.Func)
			row.NativeSymbol = tr.row(c.nativeSymbols[k], row.NativeSymbol)
			row.Category = tr.row(src.categories, row.Category)
			if tr.err != nil {
				return tr.err
			}
			index, ok := seen[row]
			if !ok {
				index = c.Frames.Append(row)
				seen[row] = index
			}
			m.set(i, index)
		}
		c.frames = append(c.frames, m)
	}
	return nil
}

type stackKey struct {
	frame  int
	prefix int
}

func (c *combined) combineStacks(sources []*source) error {
	seen := make(map[stackKey]int)
	for k, src := range sources {
		table := &src.thread.StackTable
		m := newTranslationMap("stack", table.Length)
		var tr translator
		for i := 0; i < table.Length; i++ {
			// prefixes come before the stacks using them
			key := stackKey{
				frame:  tr.row(c.frames[k], table.Frame[i]),
				prefix: tr.row(m, table.Prefix[i]),
			}
			if tr.err != nil {
				return tr.err
			}
			index, ok := seen[key]
			if !ok {
				index = c.Stacks.Append(key.frame, key.prefix)
				seen[key] = index
			}
			m.set(i, index)
		}
		c.stacks = append(c.stacks, m)
	}
	return nil
}

// apply stores the combined tables in thread.
func (c *combined) apply(thread *profile.Thread) {
	thread.ResourceTable = c.Resources
	thread.NativeSymbols = c.NativeSymbols
	thread.FuncTable = c.Funcs
	thread.FrameTable = c.Frames
	thread.StackTable = c.Stacks
}
