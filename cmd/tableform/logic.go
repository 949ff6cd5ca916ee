package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/tableform/pkg/formlogic"
)

func readForm(path string) (formlogic.FormDefinition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return formlogic.FormDefinition{}, err
	}
	var form formlogic.FormDefinition
	if err := json.Unmarshal(b, &form); err != nil {
		return formlogic.FormDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := form.CheckStructure(); err != nil {
		return formlogic.FormDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return form, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func lintCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Report conditional logic rules that look wrong",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := readForm(file)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), formlogic.Lint(form))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "form definition json")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// answerStep is one entry of an answers file. Steps are applied in order.
type answerStep struct {
	FieldID string          `json:"fieldId"`
	Value   formlogic.Value `json:"value"`
}

type evaluateStep struct {
	FieldID string   `json:"fieldId"`
	Visible []string `json:"visible"`
}

type evaluateOutput struct {
	UnsetRules string                     `json:"unsetRules"`
	Steps      []evaluateStep             `json:"steps"`
	Visible    []string                   `json:"visible"`
	Validation formlogic.ValidationResult `json:"validation"`
	Accepted   formlogic.AnswerMap        `json:"accepted,omitempty"`
}

func evaluateCmd() *cobra.Command {
	var file, answersFile string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Fill a form with recorded answers and print visibility and validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := readForm(file)
			if err != nil {
				return err
			}
			var steps []answerStep
			if answersFile != "" {
				b, err := os.ReadFile(answersFile)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &steps); err != nil {
					return fmt.Errorf("%s: %w", answersFile, err)
				}
			}

			unset, err := formlogic.ParseUnsetRuleResult(cmd.Flag("logic-unset-rules").Value.String())
			if err != nil {
				return err
			}
			session := formlogic.NewFillSession(form, formlogic.NewEvaluator(unset))
			out := evaluateOutput{UnsetRules: unset.String(), Steps: []evaluateStep{}}
			for _, s := range steps {
				out.Steps = append(out.Steps, evaluateStep{FieldID: s.FieldID, Visible: session.Set(s.FieldID, s.Value)})
			}
			out.Visible = session.Visible()
			out.Validation, out.Accepted = session.Submit()
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "form definition json")
	cmd.Flags().StringVarP(&answersFile, "answers", "a", "", `answers json: [{"fieldId": "...", "value": ...}, ...]`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
