package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/pdfreader"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/schema"
	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-pipeline/pkg/config"
	"github.com/FACorreiaa/statement-pipeline/pkg/observability"
)

// app is the state shared by every command. It is filled in by setup before any
// command runs.
type app struct {
	configFile string
	envFile    string
	logLevel   string

	// opener replaces the PDF library when set.
	opener pdfreader.Opener

	cfg       *config.Config
	logger    *slog.Logger
	processor *service.Processor
	schemas   *schema.Repository
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statementctl",
		Short: "Extract, mask and validate financial PDF statements",
		Long: `statementctl decrypts bank statements, credit card bills and transaction
notices, extracts their summary fields and transactions, masks personal data and
validates the result against the per-type schema.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "TOML file overriding the environment configuration")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newParseCmd(a),
		newProcessCmd(a),
		newClassifyCmd(a),
		newMaskCmd(a),
		newValidateCmd(a),
		newTypesCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.configFile != "" {
		if err := config.ApplyFile(cfg, a.configFile); err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.Observability.LogLevel = a.logLevel
	}

	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.Observability.ServiceName, cfg.Observability.LogLevel)

	opener := a.opener
	if opener == nil {
		opener = pdfreader.NewLibraryOpener()
	}
	processor, schemas, err := service.BuildWith(cfg, opener, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.processor = processor
	a.schemas = schemas
	return nil
}

// readInput reads path, or standard input when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// openOutput returns the destination for command output: path when set,
// otherwise the command's standard output.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
