package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
)

type classifyOptions struct {
	password string
	asJSON   bool
}

func newClassifyCmd(a *app) *cobra.Command {
	opts := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify <pdf|->",
		Short: "Show the detected document type with the markers behind it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, a, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password tried before the configured defaults")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print as JSON")
	return cmd
}

func runClassify(cmd *cobra.Command, a *app, path string, opts *classifyOptions) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	res, err := a.processor.Process(cmd.Context(), service.Request{Data: data, Password: opts.password})
	if err != nil {
		return err
	}
	cls := res.Classification

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cls)
	}

	fmt.Fprintf(out, "document type: %s (%s)\n\n", cls.Type, cls.Type.Label())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tSCORE\tMARKERS")
	for _, t := range statement.KnownTypes {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", t, cls.Scores[t], strings.Join(cls.Markers[t], ", "))
	}
	return tw.Flush()
}
