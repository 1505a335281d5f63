/*
Package cli provides command-line utilities for the feedwatch command.

It includes output formatters, a small HTTP client for talking to a running
feedwatch instance, typed CLI errors and signal handling.

Output Formatting:

Commands render results as text tables, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatText)
	table := cli.Table{Headers: []string{"RULE", "ACTIVE"}, Rows: rows}
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Remote Commands:

	client := cli.NewClient("http://127.0.0.1:8090", 10*time.Second)
	rules, err := client.Rules(ctx)

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
