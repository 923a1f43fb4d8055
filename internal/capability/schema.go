package capability

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileParameters compiles a tool's parameters as a JSON Schema. Empty
// parameters are accepted and yield a nil schema.
func CompileParameters(tc ToolCard) (*jsonschema.Schema, error) {
	if len(tc.Parameters) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(tc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	const url = "parameters.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile parameters schema: %w", err)
	}
	return schema, nil
}

// ValidateArguments checks args against the parameters schema of tool name.
func (c *Catalog) ValidateArguments(name string, args map[string]interface{}) error {
	if c == nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	schema, ok := c.schemas[name]
	if !ok {
		if _, known := c.tools[name]; !known {
			return fmt.Errorf("%w: %s", ErrToolMissing, name)
		}
		return nil
	}
	var doc interface{}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("arguments for %s do not match schema: %w", name, err)
	}
	return nil
}
