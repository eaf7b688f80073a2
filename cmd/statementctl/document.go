package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/classifier"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/export"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
)

type documentOptions struct {
	password   string
	docType    string
	format     string
	output     string
	mask       bool
	maskTypes  []string
	aggressive bool
	validate   bool
	annotate   bool
}

func newParseCmd(a *app) *cobra.Command {
	opts := &documentOptions{}
	cmd := &cobra.Command{
		Use:   "parse <pdf|->",
		Short: "Decrypt and extract a document without masking or validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(cmd, a, args[0], opts)
		},
	}
	addDocumentFlags(cmd, opts)
	return cmd
}

func newProcessCmd(a *app) *cobra.Command {
	opts := &documentOptions{}
	cmd := &cobra.Command{
		Use:   "process <pdf|->",
		Short: "Run the full pipeline: extract, mask, validate and optionally annotate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(cmd, a, args[0], opts)
		},
	}
	addDocumentFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.mask, "mask", true, "mask personal data in the text and summary")
	cmd.Flags().StringSliceVar(&opts.maskTypes, "mask-types", nil, "masking categories (default: configured categories)")
	cmd.Flags().BoolVar(&opts.aggressive, "aggressive", false, "also mask amounts and long digit runs")
	cmd.Flags().BoolVar(&opts.validate, "validate", true, "validate the summary against its schema")
	cmd.Flags().BoolVar(&opts.annotate, "annotate", false, "send the masked text to the configured annotator")
	return cmd
}

func addDocumentFlags(cmd *cobra.Command, opts *documentOptions) {
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password tried before the configured defaults")
	cmd.Flags().StringVarP(&opts.docType, "type", "t", "", "document type hint (see 'statementctl types')")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json, csv or xlsx")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: standard output)")
}

func runDocument(cmd *cobra.Command, a *app, path string, opts *documentOptions) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	hint, err := classifier.ParseType(opts.docType)
	if err != nil {
		return err
	}
	categories, err := privacy.ParseCategories(opts.maskTypes)
	if err != nil {
		return err
	}
	if opts.annotate && !a.processor.AnnotationEnabled() {
		return errors.New("--annotate needs ANNOTATOR_URL or [annotator] url to be configured")
	}

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	res, err := a.processor.Process(cmd.Context(), service.Request{
		Data:           data,
		Password:       opts.password,
		TypeHint:       hint,
		Mask:           opts.mask,
		MaskCategories: categories,
		Aggressive:     opts.aggressive,
		Validate:       opts.validate,
		Annotate:       opts.annotate,
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		a.logger.Warn("pipeline warning", slog.String("kind", string(w.Kind)), slog.String("message", w.Message))
	}

	out, closeOut, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	if err := writeResult(out, format, res); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

func writeResult(w io.Writer, format export.Format, res *statement.Result) error {
	switch format {
	case export.FormatCSV:
		return export.WriteCSV(w, res.Transactions)
	case export.FormatXLSX:
		return export.WriteXLSX(w, res.Summary, res.Transactions)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
}
