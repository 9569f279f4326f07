package catalogue

import (
	"fmt"
	"reflect"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

// ValidateArguments checks args against the tool's declared JSON schema.
// It must be called before dispatch; arguments that violate the schema
// never reach the tool's invocation function.
func ValidateArguments(def ports.ToolDefinition, args map[string]any) error {
	var problems []string

	for _, required := range def.Parameters.Required {
		if _, ok := args[required]; !ok {
			problems = append(problems, fmt.Sprintf("missing required parameter %q", required))
		}
	}

	for name, value := range args {
		prop, ok := def.Parameters.Properties[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown parameter %q", name))
			continue
		}
		if value == nil {
			problems = append(problems, fmt.Sprintf("parameter %q is null", name))
			continue
		}
		if msg := checkType(name, prop.Type, value); msg != "" {
			problems = append(problems, msg)
			continue
		}
		if len(prop.Enum) > 0 && !enumContains(prop.Enum, value) {
			problems = append(problems, fmt.Sprintf("parameter %q is not one of the allowed values", name))
		}
	}

	if len(problems) > 0 {
		return &xerrors.ValidationError{Tool: def.Name, Problems: problems}
	}
	return nil
}

func checkType(name, schemaType string, value any) string {
	switch schemaType {
	case "", "any":
		return ""
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("parameter %q must be a string", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("parameter %q must be a boolean", name)
		}
	case "number":
		if !isNumeric(value) {
			return fmt.Sprintf("parameter %q must be a number", name)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Sprintf("parameter %q must be an integer", name)
		}
	case "array":
		if reflect.ValueOf(value).Kind() != reflect.Slice {
			return fmt.Sprintf("parameter %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("parameter %q must be an object", name)
		}
	default:
		return fmt.Sprintf("parameter %q has unsupported schema type %q", name, schemaType)
	}
	return ""
}

// isNumeric accepts native Go numbers and the float64 produced by JSON
// decoding.
func isNumeric(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// isInteger accepts whole-valued floats because JSON decoding yields
// float64 for every number.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	}
	return false
}

func enumContains(allowed []any, value any) bool {
	for _, candidate := range allowed {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
		// JSON decoding turns numeric enum entries into float64.
		if isNumeric(candidate) && isNumeric(value) && toFloat(candidate) == toFloat(value) {
			return true
		}
	}
	return false
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}
