package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/failover"
)

var statusFlags struct {
	providers bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rule state of a running instance",
	Long: `Show the state of every failover rule of a running instance, or the health
of every provider with --providers.

Examples:
  # Rule state
  feedwatch status --server 127.0.0.1:8090

  # Provider health as JSON
  feedwatch status --providers --output json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusFlags.providers, "providers", "p", false, "show provider health instead of rules")
}

func showStatus(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	client := newClient()
	out := cmd.OutOrStdout()

	if statusFlags.providers {
		resp, err := client.Health(cmd.Context())
		if err != nil {
			return cli.NewCommandError("status", err)
		}
		if resp.IsSimulated {
			fmt.Fprintln(cmd.ErrOrStderr(), "note: no streaming session is active")
		}
		return formatter.FormatTo(out, providerTable(resp.Providers))
	}

	resp, err := client.Rules(cmd.Context())
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	if resp.IsSimulated {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: no streaming session is active")
	}
	return formatter.FormatTo(out, snapshotTable(resp.Rules))
}

// snapshotTable renders rule snapshots.
func snapshotTable(snaps []failover.RuleSnapshot) cli.Table {
	t := cli.Table{
		Headers: []string{"RULE", "MODE", "ACTIVE", "PRIMARY", "DEGRADED", "SINCE", "REASON"},
		Data:    snaps,
	}
	for _, s := range snaps {
		since := "-"
		if s.LastTransition != nil {
			since = s.LastTransition.UTC().Format(time.RFC3339)
		}
		t.Rows = append(t.Rows, []string{
			s.RuleID,
			string(s.Mode),
			string(s.ActiveProviderID),
			string(s.PrimaryProviderID),
			fmt.Sprint(s.Degraded),
			since,
			s.LastReason,
		})
	}
	return t
}

// providerTable renders provider health snapshots.
func providerTable(snaps []failover.ProviderHealthSnapshot) cli.Table {
	t := cli.Table{
		Headers: []string{"PROVIDER", "HEALTHY", "FAILURES", "SUCCESSES", "LATENCY", "QUALITY", "ACTIVE FOR"},
		Data:    snaps,
	}
	for _, s := range snaps {
		healthy := fmt.Sprint(s.Healthy)
		switch {
		case s.Stale:
			healthy = "stale"
		case !s.Observed:
			healthy = "unobserved"
		}
		t.Rows = append(t.Rows, []string{
			string(s.ProviderID),
			healthy,
			fmt.Sprint(s.ConsecutiveFailures),
			fmt.Sprint(s.ConsecutiveSuccesses),
			fmt.Sprintf("%.1fms", s.AverageLatencyMs),
			optionalFloat(s.DataQualityScore, "%.2f"),
			strings.Join(s.ActiveForRules, ","),
		})
	}
	return t
}
