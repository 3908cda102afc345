package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
- field: customerName
  label: customer name
  required: true
  minLength: 2
  maxLength: 100
  pattern: "^[A-Za-z ]+$"
- field: notes
  label: notes
- field: slot
  custom: slotCheck
`

func TestLoadRules(t *testing.T) {
	called := false
	predicates := map[string]Predicate{
		"slotCheck": func(string) ([]string, []string) {
			called = true
			return nil, []string{"check the slot"}
		},
	}

	rules, err := LoadRules(strings.NewReader(rulesYAML), predicates)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	result := rules.Validate(map[string]string{
		"customerName": "Jane Doe",
		"slot":         "morning",
	})
	assert.True(t, result.IsValid)
	assert.True(t, called)
	assert.Equal(t, []string{"check the slot"}, result.Warnings)

	result = rules.Validate(map[string]string{"customerName": "Jane42"})
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "customerName has invalid format")
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing field name", "- label: no field\n"},
		{"bad pattern", "- field: x\n  pattern: \"[\"\n"},
		{"unknown predicate", "- field: x\n  custom: nope\n"},
		{"not yaml", "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(strings.NewReader(tt.yaml), nil)
			assert.Error(t, err)
		})
	}
}
