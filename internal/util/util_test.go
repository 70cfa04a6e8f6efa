package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delegateArgs struct {
	Agent    string `json:"agent" description:"target agent"`
	Task     string `json:"task"`
	Priority string `json:"priority,omitempty" enum:"low,high"`
	Retries  *int   `json:"retries"`
}

func TestSchemaFor(t *testing.T) {
	s := SchemaFor(delegateArgs{})
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, []string{"agent", "task"}, s["required"])

	props := s["properties"].(map[string]any)
	agent := props["agent"].(map[string]any)
	assert.Equal(t, "string", agent["type"])
	assert.Equal(t, "target agent", agent["description"])
	assert.Equal(t, "integer", props["retries"].(map[string]any)["type"])
	assert.Equal(t, []string{"low", "high"}, props["priority"].(map[string]any)["enum"])
}

func TestSchemaFor_NonStruct(t *testing.T) {
	s := SchemaFor(42)
	assert.Empty(t, s["properties"])
	assert.Empty(t, SchemaFor(nil)["properties"])
}

func TestValidateArguments(t *testing.T) {
	schema := SchemaFor(&delegateArgs{})

	tests := []struct {
		name    string
		params  map[string]any
		field   string
		wantErr bool
	}{
		{"valid", map[string]any{"agent": "a", "task": "t"}, "", false},
		{"missing required", map[string]any{"agent": "a"}, "task", true},
		{"wrong type", map[string]any{"agent": 1.0, "task": "t"}, "agent", true},
		{"integer from json", map[string]any{"agent": "a", "task": "t", "retries": 2.0}, "", false},
		{"fractional integer", map[string]any{"agent": "a", "task": "t", "retries": 2.5}, "retries", true},
		{"enum ok", map[string]any{"agent": "a", "task": "t", "priority": "low"}, "", false},
		{"enum violated", map[string]any{"agent": "a", "task": "t", "priority": "urgent"}, "priority", true},
		{"extra fields allowed", map[string]any{"agent": "a", "task": "t", "x": true}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArguments(tt.params, schema)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateArguments_DecodedRequired(t *testing.T) {
	schema := map[string]any{"required": []any{"q"}}
	assert.Error(t, ValidateArguments(map[string]any{}, schema))
	assert.NoError(t, ValidateArguments(map[string]any{"q": "x"}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hi {{upper .name}} {{default \"n/a\" .skills}}", map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hi BOB n/a", out)

	out, err = RenderTemplate("no markers <b>", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers <b>", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
