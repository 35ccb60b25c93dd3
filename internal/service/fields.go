package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// unanswered reports whether a submitted value leaves a field blank. Checkbox
// style inputs submit "false" when left unticked.
func unanswered(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "false")
}

// ValidateAnswers checks signup answers against an event's custom fields and
// returns the answers to store. Every required field needs an answer; answers
// for fields the event does not define are dropped. With strict set, a
// multiple-choice answer must also be one of the field's options.
func ValidateAnswers(fields []model.CustomField, answers map[string]string, strict bool) (map[string]string, error) {
	clean := make(map[string]string, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(answers[f.Name])
		if unanswered(v) {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: "is required"}
			}
			continue
		}
		if strict && f.Type == model.FieldMultipleChoice && !slices.Contains(f.Options, v) {
			return nil, &ValidationError{
				Field:  f.Name,
				Reason: fmt.Sprintf("must be one of: %s", strings.Join(f.Options, ", ")),
			}
		}
		clean[f.Name] = v
	}
	return clean, nil
}

// ValidateFieldDefinitions normalises an event's custom field definitions and
// assigns their form positions.
func ValidateFieldDefinitions(inputs []model.CustomFieldInput) ([]model.CustomField, error) {
	fields := make([]model.CustomField, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("custom_fields[%d].name", i), Reason: "is required"}
		}
		if seen[name] {
			return nil, &ValidationError{Field: name, Reason: "is defined more than once"}
		}
		seen[name] = true
		if !in.Type.Valid() {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("has unknown type %q", in.Type)}
		}

		f := model.CustomField{Name: name, Type: in.Type, Required: in.Required, Position: i}
		if in.Type == model.FieldMultipleChoice {
			for _, opt := range in.Options {
				if opt = strings.TrimSpace(opt); opt != "" && !slices.Contains(f.Options, opt) {
					f.Options = append(f.Options, opt)
				}
			}
			if len(f.Options) == 0 {
				return nil, &ValidationError{Field: name, Reason: "needs at least one option"}
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}
