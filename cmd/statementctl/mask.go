package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/privacy"
)

type maskOptions struct {
	maskTypes  []string
	aggressive bool
	manifest   bool
	detect     bool
}

func newMaskCmd(a *app) *cobra.Command {
	opts := &maskOptions{}
	cmd := &cobra.Command{
		Use:   "mask [file|-]",
		Short: "Mask personal data in plain text",
		Long: `Mask reads text from a file or standard input and writes it back with
personal data redacted. With --manifest the full result is printed as JSON,
including every match and the per-category manifest. With --detect nothing is
masked; the matches and per-category counts are printed as JSON instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runMask(cmd, a, path, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.maskTypes, "mask-types", nil, "masking categories (default: configured categories)")
	cmd.Flags().BoolVar(&opts.aggressive, "aggressive", false, "also mask amounts and long digit runs")
	cmd.Flags().BoolVar(&opts.manifest, "manifest", false, "print the JSON result with matches and manifest")
	cmd.Flags().BoolVar(&opts.detect, "detect", false, "only report what would be masked, as JSON")
	cmd.MarkFlagsMutuallyExclusive("manifest", "detect")
	return cmd
}

func runMask(cmd *cobra.Command, a *app, path string, opts *maskOptions) error {
	categories, err := privacy.ParseCategories(opts.maskTypes)
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	aggressive := opts.aggressive || a.cfg.Masking.Aggressive

	out := cmd.OutOrStdout()
	if opts.detect {
		return runDetect(out, a, string(data), categories, aggressive)
	}

	res, err := a.processor.MaskText(string(data), categories, aggressive)
	if err != nil {
		return err
	}

	if opts.manifest {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if strings.HasSuffix(res.Text, "\n") {
		_, err = fmt.Fprint(out, res.Text)
	} else {
		_, err = fmt.Fprintln(out, res.Text)
	}
	return err
}

type detectReport struct {
	Found   bool            `json:"found"`
	Matches []privacy.Match `json:"matches"`
	Counts  map[string]int  `json:"counts"`
}

func runDetect(out io.Writer, a *app, text string, categories []string, aggressive bool) error {
	matches, err := a.processor.DetectText(text, categories, aggressive)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, m := range matches {
		counts[m.Category]++
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(detectReport{Found: len(matches) > 0, Matches: matches, Counts: counts})
}
