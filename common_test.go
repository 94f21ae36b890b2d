package main

import (
	"os"
	"path/filepath"
	"testing"

	pprofile "github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loov.dev/profileview/load"
	"loov.dev/profileview/merge"
	"loov.dev/profileview/profile"
)

func TestParseRange(t *testing.T) {
	r, err := parseRange("")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = parseRange("1.5, 20")
	require.NoError(t, err)
	assert.Equal(t, &profile.TimeRange{Start: 1.5, End: 20}, r)

	for _, invalid := range []string{"1", "a,2", "1,b", "5,1", "1,2,3"} {
		_, err := parseRange(invalid)
		require.Error(t, err, invalid)
	}
}

func TestParseInts(t *testing.T) {
	values, err := parseInts(" 3, 1,,2 ")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, values)

	_, err = parseInts("1,x")
	require.Error(t, err)
}

func TestParseDeletions(t *testing.T) {
	deletions, err := parseDeletions("0:3, 0:5,2:1")
	require.NoError(t, err)
	assert.Equal(t, map[int]map[int]struct{}{
		0: {3: {}, 5: {}},
		2: {1: {}},
	}, deletions)

	for _, invalid := range []string{"3", "a:1", "1:b"} {
		_, err := parseDeletions(invalid)
		require.Error(t, err, invalid)
	}
}

func TestThreadIndexes(t *testing.T) {
	p := profile.New()
	p.NewThread("a", "1", 1)
	p.NewThread("b", "1", 2)

	all, err := threadIndexes(p, "")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, all)

	_, err = threadIndexes(p, "2")
	require.Error(t, err)
}

func TestInputOptions(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
- name: Job
  display: [marker-chart]
  fields:
    - {key: queue, format: flow-id}
`), 0o644))

	flags := inputFlags{format: "tef", schemaPath: schemaPath, stringFields: "Custom.label"}
	opts, extra, err := flags.options(nil)
	require.NoError(t, err)
	assert.Equal(t, load.TEF, opts.Format)
	assert.True(t, opts.StringFields.Has("Job", "queue"))
	assert.True(t, opts.StringFields.Has("Custom", "label"))
	_, ok := extra.Get("Job")
	assert.True(t, ok)

	flags = inputFlags{format: "auto", stringFields: "nokey"}
	_, _, err = flags.options(nil)
	require.Error(t, err)

	flags = inputFlags{format: "xml"}
	_, _, err = flags.options(nil)
	require.ErrorIs(t, err, load.ErrUnknownFormat)
}

func TestLogger(t *testing.T) {
	log, err := (&logFlags{level: "debug", json: true}).logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = (&logFlags{level: "loud"}).logger()
	require.Error(t, err)
}

func TestWritePProf(t *testing.T) {
	p := profile.New()
	b := p.NewThread("GeckoMain", "1", 1)
	b.Sample(b.Stack(0, "main", "work"), 1, 1)
	b.Sample(b.Stack(0, "main"), 2, 1)
	b.Finish()

	merged, err := merge.MergeProfileThreads(p, []int{0})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cpu.pb.gz")
	require.NoError(t, writePProf(path, merged.Threads[0], merged))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	parsed, err := pprofile.Parse(f)
	require.NoError(t, err)
	assert.Len(t, parsed.Sample, 2)
	assert.Len(t, parsed.Function, 2)
}
