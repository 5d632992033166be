package tool

import (
	"encoding/json"
	"fmt"
)

// propertySchema is the subset of JSON Schema the registry understands:
// type, properties, required, and array items. Declarations are accepted
// permissively at registration time and only enforced at invocation.
type propertySchema struct {
	Type       string                     `json:"type"`
	Items      *propertySchema            `json:"items"`
	Properties map[string]*propertySchema `json:"properties"`
	Required   []string                   `json:"required"`
}

// ValidateInput checks the JSON input against the tool's declared parameter
// schema. A declaration that doesn't decode as a schema is treated as absent
// rather than failing the call.
func ValidateInput(schema map[string]interface{}, input json.RawMessage) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(input, &fields); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}

	parsed := parseSchema(schema)
	if parsed == nil {
		return nil
	}
	return parsed.validateObject(fields)
}

func parseSchema(schema map[string]interface{}) *propertySchema {
	if len(schema) == 0 {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out propertySchema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

func (s *propertySchema) validateObject(fields map[string]interface{}) error {
	for _, name := range s.Required {
		if _, exists := fields[name]; !exists {
			return fmt.Errorf("missing required field: %s", name)
		}
	}

	for name, value := range fields {
		prop, declared := s.Properties[name]
		if !declared {
			// Extra fields are tolerated; the handler decides what to ignore.
			continue
		}
		if err := prop.validateValue(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *propertySchema) validateValue(fieldName string, value interface{}) error {
	switch s.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' expected string, got %T", fieldName, value)
		}
	case "number", "integer":
		// JSON unmarshals numbers to float64
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("field '%s' expected number, got %T", fieldName, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' expected boolean, got %T", fieldName, value)
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected array, got %T", fieldName, value)
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validateValue(fmt.Sprintf("%s[%d]", fieldName, i), item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected object, got %T", fieldName, value)
		}
		return s.validateObject(obj)
	}
	return nil
}
