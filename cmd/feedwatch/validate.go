package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/failover"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with environment overrides applied and report
every problem found. On success the failover rules are listed.

Examples:
  # Validate the default config
  feedwatch validate

  # Validate a specific file and print the rules as JSON
  feedwatch validate --config /etc/feedwatch/feedwatch.yaml --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	if outputFmt == "" || outputFmt == string(cli.FormatText) {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (mode %s, %d rules)\n\n",
			cfgFile, cfg.Failover.Mode, len(cfg.Failover.Rules))
	}
	return formatter.FormatTo(cmd.OutOrStdout(), ruleTable(cfg.Failover.FailoverRules()))
}

// ruleTable renders rule definitions.
func ruleTable(rules []failover.Rule) cli.Table {
	t := cli.Table{
		Headers: []string{"RULE", "PRIMARY", "BACKUPS", "FAILOVER", "RECOVERY", "MIN QUALITY", "MAX LATENCY"},
		Data:    rules,
	}
	for _, r := range rules {
		backups := make([]string, len(r.BackupProviderIDs))
		for i, b := range r.BackupProviderIDs {
			backups[i] = string(b)
		}
		t.Rows = append(t.Rows, []string{
			r.ID,
			string(r.PrimaryProviderID),
			strings.Join(backups, ","),
			fmt.Sprint(r.FailoverThreshold),
			fmt.Sprint(r.RecoveryThreshold),
			optionalFloat(r.DataQualityThreshold, "%.2f"),
			optionalFloat(r.MaxLatencyMs, "%.0fms"),
		})
	}
	return t
}

func optionalFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
