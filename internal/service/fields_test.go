package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

var testForm = []model.CustomField{
	{Name: "Company", Type: model.FieldText, Required: true},
	{Name: "Meal", Type: model.FieldMultipleChoice, Options: []string{"Veg", "Vegan"}, Required: true},
	{Name: "Notes", Type: model.FieldText},
}

func TestValidateAnswers_Required(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]string
		field   string
	}{
		{"missing", map[string]string{"Meal": "Veg"}, "Company"},
		{"empty", map[string]string{"Company": "", "Meal": "Veg"}, "Company"},
		{"blank", map[string]string{"Company": "   ", "Meal": "Veg"}, "Company"},
		{"false", map[string]string{"Company": "Acme", "Meal": "false"}, "Meal"},
		{"nil answers", nil, "Company"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAnswers(testForm, tt.answers, false)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateAnswers_LenientChoices(t *testing.T) {
	clean, err := ValidateAnswers(testForm, map[string]string{
		"Company": " Acme ",
		"Meal":    "Pescatarian",
		"Unknown": "dropped",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Company": "Acme", "Meal": "Pescatarian"}, clean)
}

func TestValidateAnswers_StrictChoices(t *testing.T) {
	_, err := ValidateAnswers(testForm, map[string]string{"Company": "Acme", "Meal": "Pescatarian"}, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Meal", verr.Field)

	clean, err := ValidateAnswers(testForm, map[string]string{"Company": "Acme", "Meal": "Vegan", "Notes": "n/a"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Vegan", clean["Meal"])
	assert.Equal(t, "n/a", clean["Notes"])
}

func TestValidateFieldDefinitions(t *testing.T) {
	fields, err := ValidateFieldDefinitions([]model.CustomFieldInput{
		{Name: " Company ", Type: model.FieldText, Required: true, Options: []string{"ignored"}},
		{Name: "Meal", Type: model.FieldMultipleChoice, Options: []string{" Veg", "", "Vegan ", "Veg"}},
	})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Company", fields[0].Name)
	assert.Nil(t, fields[0].Options)
	assert.Equal(t, 0, fields[0].Position)
	assert.Equal(t, []string{"Veg", "Vegan"}, fields[1].Options)
	assert.Equal(t, 1, fields[1].Position)
}

func TestValidateFieldDefinitions_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		inputs []model.CustomFieldInput
		field  string
	}{
		{"no name", []model.CustomFieldInput{{Name: " ", Type: model.FieldText}}, "custom_fields[0].name"},
		{"bad type", []model.CustomFieldInput{{Name: "Size", Type: "dropdown"}}, "Size"},
		{"no options", []model.CustomFieldInput{{Name: "Meal", Type: model.FieldMultipleChoice, Options: []string{" "}}}, "Meal"},
		{"duplicate", []model.CustomFieldInput{{Name: "A", Type: model.FieldText}, {Name: "A", Type: model.FieldText}}, "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFieldDefinitions(tt.inputs)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
