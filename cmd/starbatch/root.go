package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/audit"
	"github.com/chararch/starbatch/config"
	"github.com/chararch/starbatch/internal/logs"
	"github.com/chararch/starbatch/join"
	"github.com/chararch/starbatch/store"
	_ "github.com/chararch/starbatch/store/all"
	"github.com/chararch/starbatch/warehouse"
)

var logger logs.Logger

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "starbatch",
		Short: "Load the retail star schema and audit it.",
		Long: `starbatch extracts customer, product and transaction data, builds the
Store, Supplier, Customer, Product and Date dimensions and the Sales fact,
loads them in parallel batches and runs a data quality audit.

Settings come from defaults, the --config TOML file, the --env-file,
STARBATCH_* environment variables and flags, later sources winning.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(stderr, verbose)
			return nil
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().String("env-file", ".env", "Environment file loaded when present.")
	rc.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	config.Default().AddFlags(rc.PersistentFlags())

	rc.AddCommand(newRunCommand(stdout))
	rc.AddCommand(newDDLCommand(stdout))
	rc.AddCommand(newAuditCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func setupLogging(w io.Writer, verbose bool) {
	logger = logs.NewSlogLogger(logs.NewTintLogger(w, verbose))
	starbatch.SetLogger(logger)
	warehouse.SetLogger(logger)
	join.SetLogger(logger)
	audit.SetLogger(logger)
}

// loadConfig resolves the configuration of cmd and checks the sections under
// the given paths, e.g. "store". Warnings are logged, errors fail the command.
func loadConfig(cmd *cobra.Command, sections ...string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	var errs []string
	for _, iss := range cfg.Validate() {
		if !inSections(iss.Path, sections) {
			continue
		}
		if iss.Severity == config.SeverityWarning {
			logger.Warn(ctx, "config %v: %v", iss.Path, iss.Message)
			continue
		}
		errs = append(errs, iss.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  %v", strings.Join(errs, "\n  "))
	}
	logger.Debug(ctx, "configuration:\n%v", cfg)
	return cfg, nil
}

func inSections(path string, sections []string) bool {
	if len(sections) == 0 {
		return true
	}
	for _, s := range sections {
		if path == s || strings.HasPrefix(path, s+".") {
			return true
		}
	}
	return false
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	s, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, starbatch.NewBatchError(starbatch.ErrCodeConnection, "can not connect to %v store %v", cfg.Store.Kind, cfg.Store.Database, err)
	}
	return s, nil
}
