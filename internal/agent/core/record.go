package core

import (
	"bytes"
	"encoding/json"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/config"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

// Record is a TrainingExample bound to output field names. It marshals to
// a flat JSON object with keys in a fixed order.
type Record struct {
	fields  config.OutputFields
	example TrainingExample
}

// DefaultFields are the record keys used when none are configured.
func DefaultFields() config.OutputFields {
	return config.OutputConfig{}.Normalize().Fields
}

// Record binds the example to field names; empty names take defaults.
func (e TrainingExample) Record(fields config.OutputFields) Record {
	return Record{fields: config.OutputConfig{Fields: fields}.Normalize().Fields, example: e}
}

func (r Record) MarshalJSON() ([]byte, error) {
	toolSet := r.example.ToolSet
	if toolSet == nil {
		toolSet = []models.ToolDescriptor{}
	}
	type kv struct {
		key   string
		value interface{}
	}
	pairs := []kv{
		{r.fields.Query, r.example.Query},
		{r.fields.COT, r.example.ChainOfThought},
		{r.fields.Tools, toolSet},
		{r.fields.Decision, r.example.Decision},
	}
	if len(r.example.Context) > 0 {
		pairs = append(pairs, kv{"Context", r.example.Context})
	}
	if len(r.example.Metadata) > 0 {
		pairs = append(pairs, kv{"metadata", r.example.Metadata})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRaw(&buf, p.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeRaw(&buf, p.value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeRaw encodes v without HTML escaping so reasoning text keeps its
// literal <, > and & characters.
func writeRaw(buf *bytes.Buffer, v interface{}) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Records binds every example of a trajectory.
func (t Trajectory) Records(fields config.OutputFields) []Record {
	out := make([]Record, 0, len(t.Examples))
	for _, ex := range t.Examples {
		out = append(out, ex.Record(fields))
	}
	return out
}
