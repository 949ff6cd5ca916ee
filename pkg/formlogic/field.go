package formlogic

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

type InputType string

const (
	InputShortText      InputType = "shortText"
	InputLongText       InputType = "longText"
	InputSingleSelect   InputType = "singleSelect"
	InputMultipleSelect InputType = "multipleSelect"
	InputAttachment     InputType = "attachment"
	InputNumber         InputType = "number"
	InputCheckbox       InputType = "checkbox"
)

func (t InputType) Valid() bool {
	switch t {
	case InputShortText, InputLongText, InputSingleSelect, InputMultipleSelect, InputAttachment, InputNumber, InputCheckbox:
		return true
	default:
		return false
	}
}

func (t InputType) IsSelect() bool {
	return t == InputSingleSelect || t == InputMultipleSelect
}

// Accepts reports whether an answer of kind k fits the input type.
func (t InputType) Accepts(k Kind) bool {
	switch t {
	case InputShortText, InputLongText, InputSingleSelect:
		return k == KindText
	case InputMultipleSelect:
		return k == KindTextList
	case InputAttachment:
		return k == KindFileList
	case InputNumber:
		return k == KindNumber
	case InputCheckbox:
		return k == KindBoolean
	default:
		return false
	}
}

type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FormField struct {
	FieldID          string           `json:"fieldId"`
	Label            string           `json:"label"`
	Type             InputType        `json:"type"`
	Required         bool             `json:"required"`
	Placeholder      string           `json:"placeholder,omitempty"`
	HelpText         string           `json:"helpText,omitempty"`
	Options          []Option         `json:"options,omitempty"`
	ConditionalLogic ConditionalLogic `json:"conditionalLogic"`
}

func (f FormField) hasOption(name string) bool {
	for _, o := range f.Options {
		if o.Name == name {
			return true
		}
	}
	return false
}

type FormDefinition struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	ExternalBaseID  string      `json:"externalBaseId"`
	ExternalTableID string      `json:"externalTableId"`
	Fields          []FormField `json:"fields"`
}

func (d FormDefinition) Field(fieldID string) (FormField, bool) {
	for _, f := range d.Fields {
		if f.FieldID == fieldID {
			return f, true
		}
	}
	return FormField{}, false
}

// FieldIDs returns the set of field ids declared by the form.
func (d FormDefinition) FieldIDs() mapset.Set[string] {
	ids := mapset.NewSet[string]()
	for _, f := range d.Fields {
		ids.Add(f.FieldID)
	}
	return ids
}

var ErrInvalidDefinition = errors.New("formlogic: invalid form definition")

// CheckStructure rejects definitions the evaluator cannot key answers by:
// empty or duplicate field ids, unknown input types, duplicate option names.
// Rule reference problems are left to Lint.
func (d FormDefinition) CheckStructure() error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for i, f := range d.Fields {
		id := strings.TrimSpace(f.FieldID)
		if id == "" {
			return fmt.Errorf("%w: field %d has empty fieldId", ErrInvalidDefinition, i)
		}
		if !seen.Add(id) {
			return fmt.Errorf("%w: duplicate fieldId %q", ErrInvalidDefinition, id)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidDefinition, id, f.Type)
		}
		if len(f.Options) > 0 && !f.Type.IsSelect() {
			return fmt.Errorf("%w: field %q declares options but is %s", ErrInvalidDefinition, id, f.Type)
		}
		names := mapset.NewThreadUnsafeSet[string]()
		for _, o := range f.Options {
			if strings.TrimSpace(o.Name) == "" {
				return fmt.Errorf("%w: field %q has an option without a name", ErrInvalidDefinition, id)
			}
			if !names.Add(o.Name) {
				return fmt.Errorf("%w: field %q repeats option %q", ErrInvalidDefinition, id, o.Name)
			}
		}
	}
	return nil
}
