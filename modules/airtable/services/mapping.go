package services

import (
	"github.com/mitchellh/mapstructure"

	"github.com/jacksonlee411/tableform/modules/airtable/domain/types"
	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

var columnInputTypes = map[string]formlogic.InputType{
	"singleLineText":      formlogic.InputShortText,
	"email":               formlogic.InputShortText,
	"url":                 formlogic.InputShortText,
	"phoneNumber":         formlogic.InputShortText,
	"multilineText":       formlogic.InputLongText,
	"richText":            formlogic.InputLongText,
	"singleSelect":        formlogic.InputSingleSelect,
	"multipleSelects":     formlogic.InputMultipleSelect,
	"multipleAttachments": formlogic.InputAttachment,
	"number":              formlogic.InputNumber,
	"currency":            formlogic.InputNumber,
	"percent":             formlogic.InputNumber,
	"rating":              formlogic.InputNumber,
	"checkbox":            formlogic.InputCheckbox,
}

// InputTypeFor maps an Airtable column type to the form input that can fill
// it. Computed and linked columns have no input.
func InputTypeFor(columnType string) (formlogic.InputType, bool) {
	t, ok := columnInputTypes[columnType]
	return t, ok
}

type SkippedColumn struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// SuggestFields mirrors the columns of table as form fields, in column
// order, with the primary column first.
func SuggestFields(table types.Table) ([]formlogic.FormField, []SkippedColumn) {
	ordered := make([]types.Field, 0, len(table.Fields))
	if primary, ok := table.Field(table.PrimaryFieldID); ok {
		ordered = append(ordered, primary)
	}
	for _, f := range table.Fields {
		if f.ID != table.PrimaryFieldID {
			ordered = append(ordered, f)
		}
	}

	fields := []formlogic.FormField{}
	skipped := []SkippedColumn{}
	for _, col := range ordered {
		ff, err := FormFieldFromColumn(col)
		if err != nil {
			skipped = append(skipped, SkippedColumn{ID: col.ID, Name: col.Name, Type: col.Type, Reason: err.Error()})
			continue
		}
		fields = append(fields, ff)
	}
	return fields, skipped
}

type unsupportedColumnError struct{ columnType string }

func (e unsupportedColumnError) Error() string {
	return "column type " + e.columnType + " cannot be filled by a form"
}

func FormFieldFromColumn(col types.Field) (formlogic.FormField, error) {
	inputType, ok := InputTypeFor(col.Type)
	if !ok {
		return formlogic.FormField{}, unsupportedColumnError{columnType: col.Type}
	}
	ff := formlogic.FormField{
		FieldID:          col.ID,
		Label:            col.Name,
		Type:             inputType,
		HelpText:         col.Description,
		ConditionalLogic: formlogic.ConditionalLogic{Match: formlogic.MatchAll, Rules: []formlogic.Rule{}},
	}
	if inputType.IsSelect() {
		choices, err := decodeChoices(col.Options)
		if err != nil {
			return formlogic.FormField{}, err
		}
		for _, c := range choices {
			ff.Options = append(ff.Options, formlogic.Option{ID: c.ID, Name: c.Name})
		}
	}
	return ff, nil
}

func decodeChoices(options map[string]any) ([]types.Choice, error) {
	var out struct {
		Choices []types.Choice `mapstructure:"choices"`
	}
	if len(options) == 0 {
		return nil, nil
	}
	if err := mapstructure.Decode(options, &out); err != nil {
		return nil, err
	}
	return out.Choices, nil
}

// CellValues converts accepted answers into the cell payload for a new
// record. Attachments are passed by URL for Airtable to fetch.
func CellValues(answers formlogic.AnswerMap) map[string]any {
	out := make(map[string]any, len(answers))
	for id, v := range answers {
		switch v.Kind() {
		case formlogic.KindNone:
			continue
		case formlogic.KindFileList:
			files, _ := v.AsFileList()
			cells := make([]map[string]string, 0, len(files))
			for _, f := range files {
				cell := map[string]string{"url": f.URL}
				if f.Filename != "" {
					cell["filename"] = f.Filename
				}
				cells = append(cells, cell)
			}
			out[id] = cells
		default:
			out[id] = v.Interface()
		}
	}
	return out
}
