package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	var docType string
	cmd := &cobra.Command{
		Use:   "validate <json|->",
		Short: "Validate a summary or a processed result against its schema",
		Long: `Validate checks a JSON summary against the schema of its document type.
Without --type the input must be a result written by 'statementctl process',
whose document_type and summary fields are used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, args[0], docType)
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "document type of a bare summary")
	return cmd
}

func runValidate(cmd *cobra.Command, a *app, path, docType string) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	t, summary, err := validationTarget(doc, docType)
	if err != nil {
		return err
	}

	res, err := schema.NewValidator(a.schemas, a.logger).Validate(t, summary)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Valid {
		return statement.NewError(statement.KindValidationFailed, "validate",
			fmt.Errorf("%d schema errors", len(res.Errors)))
	}
	return nil
}

// validationTarget picks the document type and the value to check. A type flag
// naming a type means doc is the summary itself.
func validationTarget(doc any, docType string) (statement.DocumentType, any, error) {
	t, err := classifier.ParseType(docType)
	if err != nil {
		return "", nil, err
	}
	if t != "" {
		return t, doc, nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return "", nil, errors.New("input is not a processed result; pass --type to validate a bare summary")
	}
	raw, _ := obj["document_type"].(string)
	t = statement.DocumentType(raw)
	if !t.Valid() {
		return "", nil, errors.New("input has no valid document_type; pass --type to validate a bare summary")
	}
	return t, obj["summary"], nil
}
