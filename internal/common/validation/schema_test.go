package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name":  {"type": "string", "minLength": 1},
		"email": {"type": "string", "pattern": "^[^\\s@]+@[^\\s@]+\\.[^\\s@]+$"}
	},
	"required": ["name", "email"]
}`

func TestSchema_Valid(t *testing.T) {
	s := MustCompile(personSchema)

	res := s.Validate(map[string]interface{}{"name": "Ada", "email": "ada@example.com"})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestSchema_RequiredReportsPropertyName(t *testing.T) {
	s := MustCompile(personSchema)

	res := s.Validate(map[string]interface{}{"name": "Ada"})

	require.False(t, res.Valid)
	require.True(t, res.HasErrors("email"))
	assert.Equal(t, "required", res.GetErrorsForField("email")[0].Code)
}

func TestSchema_PatternAndLength(t *testing.T) {
	s := MustCompile(personSchema)

	res := s.Validate(map[string]interface{}{"name": "", "email": "not an email"})

	require.False(t, res.Valid)
	assert.True(t, res.HasErrors("name"))
	assert.True(t, res.HasErrors("email"))
	assert.Len(t, res.GetErrorMessages(), 2)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
