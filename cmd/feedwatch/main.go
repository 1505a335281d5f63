// Feedwatch coordinates failover between market data providers for streaming
// sessions.
//
// It tracks provider health from probe results and client reports, switches
// each rule to a backup provider when its primary degrades, and switches back
// once the primary recovers. Operators can pin a rule to a provider by hand.
//
// Usage:
//
//	# Start the coordinator with the default configuration
//	feedwatch run
//
//	# Start with a custom configuration file
//	feedwatch run --config /etc/feedwatch/feedwatch.yaml
//
//	# Check a configuration file
//	feedwatch validate --config feedwatch.yaml
//
//	# Show rule state of a running instance
//	feedwatch status --server 127.0.0.1:8090
//
//	# Pin a rule to a provider, then release it
//	feedwatch force equities-rt alpaca
//	feedwatch clear equities-rt
//
//	# List recent failover events
//	feedwatch events --since 1h
package main

func main() {
	Execute()
}
