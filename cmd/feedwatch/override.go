package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/api"
	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/failover"
)

var forceCmd = &cobra.Command{
	Use:   "force RULE PROVIDER",
	Short: "Pin a rule to a provider",
	Long: `Force a rule of a running instance onto one of its providers. The rule stays
on that provider until the override is cleared, or until the engine releases
it when the instance runs with the auto_release override policy.

Examples:
  feedwatch force equities-rt alpaca`,
	Args: cobra.ExactArgs(2),
	RunE: forceFailover,
}

var clearCmd = &cobra.Command{
	Use:   "clear RULE",
	Short: "Clear a rule's manual override",
	Long: `Clear the manual override of a rule. The rule is re-evaluated at once and
returns to its primary only if the primary is healthy.

Examples:
  feedwatch clear equities-rt`,
	Args: cobra.ExactArgs(1),
	RunE: clearOverride,
}

func init() {
	rootCmd.AddCommand(forceCmd)
	rootCmd.AddCommand(clearCmd)
}

func forceFailover(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	resp, err := newClient().Force(cmd.Context(), args[0], args[1])
	if err != nil {
		return cli.NewCommandError("force", err)
	}
	return printCommand(cmd, formatter, resp)
}

func clearOverride(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	resp, err := newClient().ClearOverride(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("clear", err)
	}
	return printCommand(cmd, formatter, resp)
}

func printCommand(cmd *cobra.Command, formatter cli.Formatter, resp *api.CommandResponse) error {
	out := cmd.OutOrStdout()

	var rules []failover.RuleSnapshot
	if resp.Rule != nil {
		rules = append(rules, *resp.Rule)
	}

	switch formatter.(type) {
	case *cli.JSONFormatter:
		return formatter.FormatTo(out, resp)
	case *cli.CSVFormatter:
		return formatter.FormatTo(out, snapshotTable(rules))
	}

	status := "unchanged"
	if resp.Changed {
		status = "changed"
	}
	fmt.Fprintf(out, "✓ %s (%s)\n", resp.Message, status)
	if len(rules) > 0 {
		fmt.Fprintln(out)
		return formatter.FormatTo(out, snapshotTable(rules))
	}
	return nil
}
