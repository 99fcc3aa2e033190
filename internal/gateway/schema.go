package gateway

import (
	"encoding/json"
	"fmt"
	"math"
)

// inputSchema is the subset of JSON Schema the tool definitions use.
type inputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type schemaProperty struct {
	Type      string   `json:"type"`
	MinLength *int     `json:"minLength"`
	Minimum   *float64 `json:"minimum"`
	Maximum   *float64 `json:"maximum"`
}

// validateArgs checks tool arguments against the tool's declared input
// schema: required fields present, primitive types and bounds respected.
// Keys the schema does not declare pass through untouched.
func validateArgs(schema, args json.RawMessage) error {
	var s inputSchema
	if err := json.Unmarshal(schema, &s); err != nil {
		return fmt.Errorf("invalid tool schema: %w", err)
	}

	values := make(map[string]json.RawMessage)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &values); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	for _, name := range s.Required {
		if _, ok := values[name]; !ok {
			return fmt.Errorf("%q is required", name)
		}
	}

	for name, raw := range values {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		if err := validateValue(name, prop, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(name string, prop schemaProperty, raw json.RawMessage) error {
	switch prop.Type {
	case "string":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%q must be a string", name)
		}
		if prop.MinLength != nil && len(v) < *prop.MinLength {
			return fmt.Errorf("%q must be at least %d characters", name, *prop.MinLength)
		}

	case "integer":
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil || v != math.Trunc(v) {
			return fmt.Errorf("%q must be an integer", name)
		}
		return checkBounds(name, prop, v)

	case "number":
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%q must be a number", name)
		}
		return checkBounds(name, prop, v)

	case "boolean":
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%q must be a boolean", name)
		}
	}
	return nil
}

func checkBounds(name string, prop schemaProperty, v float64) error {
	if prop.Minimum != nil && v < *prop.Minimum {
		return fmt.Errorf("%q must be at least %v", name, *prop.Minimum)
	}
	if prop.Maximum != nil && v > *prop.Maximum {
		return fmt.Errorf("%q must be at most %v", name, *prop.Maximum)
	}
	return nil
}
