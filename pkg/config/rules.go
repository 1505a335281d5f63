package config

import (
	"meridian-hq/feedwatch/pkg/failover"
)

// Rule converts the YAML rule into a failover rule.
func (r RuleConfig) Rule() failover.Rule {
	backups := make([]failover.ProviderID, len(r.Backups))
	for i, b := range r.Backups {
		backups[i] = failover.ProviderID(b)
	}
	return failover.Rule{
		ID:                   r.ID,
		PrimaryProviderID:    failover.ProviderID(r.Primary),
		BackupProviderIDs:    backups,
		FailoverThreshold:    r.FailoverThreshold,
		RecoveryThreshold:    r.RecoveryThreshold,
		DataQualityThreshold: r.DataQualityThreshold,
		MaxLatencyMs:         r.MaxLatencyMs,
	}
}

// FailoverRules converts every configured rule.
func (c *FailoverConfig) FailoverRules() []failover.Rule {
	rules := make([]failover.Rule, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = r.Rule()
	}
	return rules
}

// ServiceConfig returns the failover engine settings.
func (c *FailoverConfig) ServiceConfig() failover.Config {
	return failover.Config{
		OverridePolicy:      failover.OverridePolicy(c.OverridePolicy),
		LatencyAlpha:        c.LatencyEWMAAlpha,
		RecentIssueCapacity: c.RecentIssueCapacity,
	}
}

// Streaming reports whether the configuration asks for a streaming session.
func (c *FailoverConfig) Streaming() bool {
	return c.Enabled && c.Mode == ModeStreaming
}
