package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/config"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	serverAddr string
	outputFmt  string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "feedwatch",
	Short: "Feedwatch - streaming failover coordinator for market data providers",
	Long: `Feedwatch keeps streaming market data sessions on a healthy provider.

It tracks per-provider health and applies failover rules:
  - Automatic failover from a primary to the first healthy backup
  - Automatic recovery once the primary is healthy again
  - Manual overrides that pin a rule to a chosen provider
  - An event log of every transition, with optional NATS publishing
  - A websocket stream of rule changes

The run command starts the coordinator. The status, force, clear and events
commands talk to a running instance over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "feedwatch.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", config.DefaultListenAddress, "address of a running feedwatch instance")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json, csv")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for requests to a running instance")
}

// newClient returns a client for the instance named by --server.
func newClient() *cli.Client {
	return cli.NewClient(serverAddr, timeout)
}

// newFormatter returns the formatter selected by --output.
func newFormatter() (cli.Formatter, error) {
	format, err := cli.ParseOutputFormat(outputFmt)
	if err != nil {
		return nil, cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format), nil
}
