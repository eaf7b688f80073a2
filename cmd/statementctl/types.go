package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
)

type typeInfo struct {
	Type  statement.DocumentType `json:"type"`
	Label string                 `json:"label"`
}

func newTypesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List document types and masking categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTypes(cmd, a, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func runTypes(cmd *cobra.Command, a *app, asJSON bool) error {
	types := make([]typeInfo, 0, len(statement.KnownTypes)+1)
	for _, t := range append(append([]statement.DocumentType{}, statement.KnownTypes...), statement.Unknown) {
		types = append(types, typeInfo{Type: t, Label: t.Label()})
	}
	categories := privacy.Categories()

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"document_types":  types,
			"mask_categories": categories,
			"schemas":         a.schemas.Available(),
		})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT TYPE\tLABEL")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\n", t.Type, t.Label)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MASK CATEGORY\tLABEL\tAGGRESSIVE")
	for _, c := range categories {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", c.Name, c.Label, c.Aggressive)
	}
	return tw.Flush()
}
