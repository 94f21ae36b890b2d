// Package schema describes how marker payloads are displayed and interpreted.
package schema

import (
	_ "embed"
	"os"

	"github.com/zeebo/errs/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatURL               = Format("url")
	FormatFilePath          = Format("file-path")
	FormatSanitizedString   = Format("sanitized-string")
	FormatString            = Format("string")
	FormatUniqueString      = Format("unique-string")
	FormatFlowID            = Format("flow-id")
	FormatTerminatingFlowID = Format("terminating-flow-id")
	FormatDuration          = Format("duration")
	FormatTime              = Format("time")
	FormatInteger           = Format("integer")
	FormatBytes             = Format("bytes")
)

// Location is a view in which markers of a schema are shown.
type Location string

const (
	MarkerChart      = Location("marker-chart")
	MarkerTable      = Location("marker-table")
	TimelineOverview = Location("timeline-overview")
	TimelineIPC      = Location("timeline-ipc")
	StackChart       = Location("stack-chart")
)

type Field struct {
	Key        string `yaml:"key" json:"key"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
	Format     Format `yaml:"format" json:"format"`
	Searchable bool   `yaml:"searchable,omitempty" json:"searchable,omitempty"`
	Hidden     bool   `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

type Schema struct {
	Name         string     `yaml:"name" json:"name"`
	TooltipLabel string     `yaml:"tooltipLabel,omitempty" json:"tooltipLabel,omitempty"`
	TableLabel   string     `yaml:"tableLabel,omitempty" json:"tableLabel,omitempty"`
	ChartLabel   string     `yaml:"chartLabel,omitempty" json:"chartLabel,omitempty"`
	Description  string     `yaml:"description,omitempty" json:"description,omitempty"`
	Display      []Location `yaml:"display" json:"display"`
	Fields       []Field    `yaml:"fields" json:"fields"`
	IsStackBased bool       `yaml:"isStackBased,omitempty" json:"isStackBased,omitempty"`
}

// Registry is a read-only set of schemas keyed by payload type.
type Registry struct {
	schemas []Schema
	byName  map[string]int
}

func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{byName: make(map[string]int, len(schemas))}
	for _, s := range schemas {
		if i, ok := r.byName[s.Name]; ok {
			r.schemas[i] = s
			continue
		}
		r.byName[s.Name] = len(r.schemas)
		r.schemas = append(r.schemas, s)
	}
	return r
}

func (r *Registry) Get(name string) (*Schema, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &r.schemas[i], true
}

func (r *Registry) Schemas() []Schema {
	return append([]Schema(nil), r.schemas...)
}

func (r *Registry) Len() int { return len(r.schemas) }

// Merge returns a registry with the schemas of other replacing
// same-named schemas of r.
func (r *Registry) Merge(other *Registry) *Registry {
	if other == nil {
		return r
	}
	return NewRegistry(append(r.Schemas(), other.schemas...)...)
}

// FieldFormat returns the format of a payload field, if declared.
func (r *Registry) FieldFormat(payloadType, key string) (Format, bool) {
	s, ok := r.Get(payloadType)
	if !ok {
		return "", false
	}
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Format, true
		}
	}
	return "", false
}

func Parse(data []byte) (*Registry, error) {
	var schemas []Schema
	if err := yaml.Unmarshal(data, &schemas); err != nil {
		return nil, errs.Errorf("invalid marker schema: %w", err)
	}
	for i, s := range schemas {
		if s.Name == "" {
			return nil, errs.Errorf("marker schema %d has no name", i)
		}
	}
	return NewRegistry(schemas...), nil
}

func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Errorf("failed to read marker schema %q: %w", path, err)
	}
	return Parse(data)
}

func (r *Registry) MarshalYAML() (interface{}, error) {
	return r.schemas, nil
}

//go:embed default.yaml
var defaultSchemas []byte

// Default returns the built-in schemas.
func Default() *Registry {
	r, err := Parse(defaultSchemas)
	if err != nil {
		panic(err)
	}
	return r
}
