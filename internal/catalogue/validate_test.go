package catalogue

import (
	stderrors "errors"
	"strings"
	"testing"

	"aster/internal/engine/ports"
	xerrors "aster/internal/errors"
)

func sampleDefinition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name: "deploy",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"service":  {Type: "string"},
				"replicas": {Type: "integer"},
				"weight":   {Type: "number"},
				"dry_run":  {Type: "boolean"},
				"tags":     {Type: "array"},
				"labels":   {Type: "object"},
				"region":   {Type: "string", Enum: []any{"eu-west-1", "us-east-1"}},
			},
			Required: []string{"service"},
		},
	}
}

func TestValidateArguments(t *testing.T) {
	def := sampleDefinition()

	tests := []struct {
		name    string
		args    map[string]any
		problem string // substring of the expected problem, "" means valid
	}{
		{"minimal valid", map[string]any{"service": "api"}, ""},
		{"all valid", map[string]any{
			"service": "api", "replicas": float64(3), "weight": 0.5,
			"dry_run": true, "tags": []any{"a"}, "labels": map[string]any{"env": "prod"},
			"region": "eu-west-1",
		}, ""},
		{"missing required", map[string]any{"replicas": float64(1)}, `missing required parameter "service"`},
		{"unknown parameter", map[string]any{"service": "api", "bogus": 1}, `unknown parameter "bogus"`},
		{"null value", map[string]any{"service": nil}, `parameter "service" is null`},
		{"wrong string", map[string]any{"service": 42}, "must be a string"},
		{"wrong boolean", map[string]any{"service": "api", "dry_run": "yes"}, "must be a boolean"},
		{"wrong number", map[string]any{"service": "api", "weight": "heavy"}, "must be a number"},
		{"fractional integer", map[string]any{"service": "api", "replicas": 2.5}, "must be an integer"},
		{"whole float as integer", map[string]any{"service": "api", "replicas": float64(2)}, ""},
		{"wrong array", map[string]any{"service": "api", "tags": "a,b"}, "must be an array"},
		{"wrong object", map[string]any{"service": "api", "labels": "env=prod"}, "must be an object"},
		{"enum violation", map[string]any{"service": "api", "region": "mars-1"}, "not one of the allowed values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArguments(def, tt.args)
			if tt.problem == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected problem containing %q", tt.problem)
			}
			if xerrors.Classify(err) != xerrors.KindValidation {
				t.Fatalf("expected validation error, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.problem)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	def := sampleDefinition()
	err := ValidateArguments(def, map[string]any{"bogus": 1, "dry_run": "yes"})

	var verr *xerrors.ValidationError
	if !stderrors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	// Missing required + unknown + wrong type reported together.
	if len(verr.Problems) != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
}

func TestValidateNumericEnum(t *testing.T) {
	def := ports.ToolDefinition{
		Name: "scale",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"factor": {Type: "integer", Enum: []any{1, 2, 4}},
			},
		},
	}
	// JSON decoding yields float64; the enum still matches.
	if err := ValidateArguments(def, map[string]any{"factor": float64(2)}); err != nil {
		t.Fatalf("float64 enum value should match int entry: %v", err)
	}
	if err := ValidateArguments(def, map[string]any{"factor": float64(3)}); err == nil {
		t.Fatal("value outside numeric enum should be rejected")
	}
}
