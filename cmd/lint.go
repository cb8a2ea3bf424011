package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/eval/starlark"
	"github.com/reglint/reglint/internal/linter"
	"github.com/reglint/reglint/internal/metrics"
	"github.com/reglint/reglint/internal/output"
	"github.com/reglint/reglint/internal/report"
)

var (
	disable         []string
	disableAll      bool
	disableCategory []string
	enable          []string
	enableAll       bool
	enableCategory  []string
	ignoreFiles     []string
	customRules     []string
	enableMetrics   bool
	enableProfiling bool
	failLevel       string
)

var lintCmd = &cobra.Command{
	Use:   "lint <path> [path ...]",
	Short: "Lint policy files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := runLint(cmd, args)
		if err != nil {
			return err
		}

		if err := publish(rep); err != nil {
			return err
		}

		if shouldFail(rep, viper.GetString("fail-level")) {
			os.Exit(3)
		}

		return nil
	},
}

func init() {
	lintCmd.Flags().StringSliceVar(&disable, "disable", nil, "Disable rules by name")
	lintCmd.Flags().BoolVar(&disableAll, "disable-all", false, "Disable all rules")
	lintCmd.Flags().StringSliceVar(&disableCategory, "disable-category", nil, "Disable rules by category")
	lintCmd.Flags().StringSliceVar(&enable, "enable", nil, "Enable rules by name")
	lintCmd.Flags().BoolVar(&enableAll, "enable-all", false, "Enable all rules")
	lintCmd.Flags().StringSliceVar(&enableCategory, "enable-category", nil, "Enable rules by category")
	lintCmd.Flags().StringSliceVar(&ignoreFiles, "ignore-files", nil, "Ignore files matching the given patterns, overriding configuration")
	lintCmd.Flags().StringSliceVar(&customRules, "rules", nil, "Path to custom declarative rules, may be a directory")
	lintCmd.Flags().BoolVar(&enableMetrics, "metrics", false, "Collect and report timing metrics")
	lintCmd.Flags().BoolVar(&enableProfiling, "profile", false, "Report the most expensive evaluation locations")
	lintCmd.Flags().StringVar(&failLevel, "fail-level", "warning", "Exit non-zero when violations at or above this level are found (error|warning)")

	viper.BindPFlag("fail-level", lintCmd.Flags().Lookup("fail-level"))

	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) (report.Report, error) {
	userConfig, err := loadUserConfig()
	if err != nil {
		return report.Report{}, err
	}

	engine, err := starlark.NewEngine()
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to initialize rule engine: %w", err)
	}

	opts := linter.Options{
		InputPaths:       args,
		UserConfig:       userConfig,
		Evaluator:        engine,
		CustomRulesPaths: customRules,
		Debug:            viper.GetBool("debug"),
		Disable:          disable,
		DisableAll:       disableAll,
		DisableCategory:  disableCategory,
		Enable:           enable,
		EnableAll:        enableAll,
		EnableCategory:   enableCategory,
		IgnoreFiles:      ignoreFiles,
		Profiling:        enableProfiling,
	}

	if enableMetrics {
		opts.Metrics = metrics.New()
	}

	return linter.New(opts).Lint(cmd.Context())
}

func loadUserConfig() (*config.Config, error) {
	path := viper.GetString("config-file")
	if path == "" {
		path = config.FindConfigFile(".")
		if path == "" {
			return nil, nil
		}
	}

	conf, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}

	return &conf, nil
}

func publish(rep report.Report) error {
	var reporter output.Reporter

	switch viper.GetString("format") {
	case "json":
		reporter = output.NewJSONReporter(os.Stdout)
	default:
		reporter = output.NewConsoleReporter(os.Stdout, viper.GetBool("verbose"))
	}

	return reporter.Publish(rep)
}

func shouldFail(rep report.Report, level string) bool {
	for _, violation := range rep.Violations {
		if violation.Level == "error" || level != "error" {
			return true
		}
	}

	return false
}
