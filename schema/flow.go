package schema

// FlowField is a payload field holding a flow id.
type FlowField struct {
	Key           string
	IsTerminating bool
}

// FlowSchema lists the flow fields of a schema with at least one of them.
type FlowSchema struct {
	Fields       []FlowField
	IsStackBased bool
}

type FlowSchemasByName map[string]FlowSchema

func (r *Registry) FlowSchemas() FlowSchemasByName {
	flows := make(FlowSchemasByName)
	for _, s := range r.schemas {
		var fields []FlowField
		for _, f := range s.Fields {
			switch f.Format {
			case FormatFlowID:
				fields = append(fields, FlowField{Key: f.Key})
			case FormatTerminatingFlowID:
				fields = append(fields, FlowField{Key: f.Key, IsTerminating: true})
			}
		}
		if len(fields) > 0 {
			flows[s.Name] = FlowSchema{
				Fields:       fields,
				IsStackBased: s.IsStackBased,
			}
		}
	}
	return flows
}

// StringFields lists, per payload type, the fields whose values are
// indexes into the shared string table.
type StringFields map[string][]string

func (r *Registry) StringFields() StringFields {
	fields := make(StringFields)
	for _, s := range r.schemas {
		for _, f := range s.Fields {
			switch f.Format {
			case FormatUniqueString, FormatFlowID, FormatTerminatingFlowID:
				fields[s.Name] = append(fields[s.Name], f.Key)
			}
		}
	}
	return fields
}

// Add registers extra string-indexed fields.
func (fields StringFields) Add(payloadType string, keys ...string) {
	for _, key := range keys {
		if !fields.Has(payloadType, key) {
			fields[payloadType] = append(fields[payloadType], key)
		}
	}
}

func (fields StringFields) Has(payloadType, key string) bool {
	for _, k := range fields[payloadType] {
		if k == key {
			return true
		}
	}
	return false
}
