// Package config provides configuration management for feedwatch.
//
// This package handles loading, validating, and watching the YAML configuration file,
// with environment variable overrides and optional .env files.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("feedwatch.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("feedwatch.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention FEEDWATCH_SECTION_FIELD:
//
//   - FEEDWATCH_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - FEEDWATCH_FAILOVER_OVERRIDE_POLICY overrides failover.override_policy
//   - FEEDWATCH_PROVIDERS_IB_API_KEY overrides providers.ib.api_key
//   - FEEDWATCH_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Initialize also loads a .env file placed next to the configuration file. Variables
// already present in the environment win over the file.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Rule Hot Reload
//
// With failover.watch enabled the run command starts a Watcher. Each debounced change
// reloads the file and hands the new rule set to the failover service; an invalid file
// is logged and ignored.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8090"
//
//	failover:
//	  mode: "streaming"
//	  override_policy: "sticky"
//	  rules:
//	    - id: "r1"
//	      primary: "ib"
//	      backups: ["alpaca"]
//	      failover_threshold: 3
//	      recovery_threshold: 2
//
//	events:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/feedwatch.db"
package config
