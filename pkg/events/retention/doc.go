// Package retention prunes the event log by age and by record count, either
// on demand (Pruner.Prune) or on a robfig/cron schedule (Pruner.Start).
package retention
