package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/events"
)

var eventsFlags struct {
	rule     string
	provider string
	typ      string
	since    time.Duration
	limit    int
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List failover events of a running instance",
	Long: `List recorded failover events of a running instance, newest first.

Examples:
  # Last 100 events
  feedwatch events

  # Failovers of one rule during the last hour
  feedwatch events --rule equities-rt --type failover --since 1h

  # Every event involving a provider, as CSV
  feedwatch events --provider alpaca --output csv`,
	RunE: listEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsFlags.rule, "rule", "", "only events of this rule")
	eventsCmd.Flags().StringVar(&eventsFlags.provider, "provider", "", "only events involving this provider")
	eventsCmd.Flags().StringVar(&eventsFlags.typ, "type", "", "only events of this type (failover, recovery, manual_override, ...)")
	eventsCmd.Flags().DurationVar(&eventsFlags.since, "since", 0, "only events newer than this duration (e.g. 1h)")
	eventsCmd.Flags().IntVarP(&eventsFlags.limit, "limit", "n", 0, "maximum number of events (server default when 0)")
}

func listEvents(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	if eventsFlags.since < 0 {
		return cli.NewConfigError("since", "duration must be positive")
	}

	filter := cli.EventFilter{
		RuleID:     eventsFlags.rule,
		ProviderID: eventsFlags.provider,
		Type:       eventsFlags.typ,
		Limit:      eventsFlags.limit,
	}
	if eventsFlags.since > 0 {
		filter.Since = time.Now().Add(-eventsFlags.since)
	}

	resp, err := newClient().Events(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("events", err)
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), eventTable(resp.Events)); err != nil {
		return err
	}
	if _, ok := formatter.(*cli.TextFormatter); ok && resp.Total > int64(len(resp.Events)) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nshowing %d of %d events\n", len(resp.Events), resp.Total)
	}
	return nil
}

// eventTable renders event records.
func eventTable(records []*events.Record) cli.Table {
	t := cli.Table{
		Headers: []string{"TIME", "TYPE", "RULE", "PROVIDER", "FROM", "TO", "AUTO", "REASON"},
		Data:    records,
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Type),
			r.RuleID,
			string(r.ProviderID),
			string(r.FromProvider),
			string(r.ToProvider),
			fmt.Sprint(r.Automatic),
			r.Reason,
		})
	}
	return t
}
