package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meridian-hq/feedwatch/pkg/failover"
)

// Pinger is implemented by backends that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connector is implemented by clients with a connection state.
type Connector interface {
	IsConnected() bool
}

// PingCheck checks a backend by pinging it.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// ConnectedCheck fails while c reports no connection.
func ConnectedCheck(name string, c Connector) CheckFunc {
	return func(ctx context.Context) error {
		if !c.IsConnected() {
			return fmt.Errorf("%s not connected", name)
		}
		return nil
	}
}

// ServiceCheck fails when the registry holds no failover service. In backfill
// mode the registry is intentionally empty, so callers pass required=false.
func ServiceCheck(reg *failover.Registry, required bool) CheckFunc {
	return func(ctx context.Context) error {
		if _, ok := reg.Service(); !ok && required {
			return errors.New("failover service not running")
		}
		return nil
	}
}

// DegradedRulesCheck fails while any rule has no healthy provider.
func DegradedRulesCheck(reg *failover.Registry) CheckFunc {
	return func(ctx context.Context) error {
		svc, ok := reg.Service()
		if !ok {
			return nil
		}
		var degraded []string
		for _, snap := range svc.GetRuleSnapshots() {
			if snap.Degraded {
				degraded = append(degraded, snap.RuleID)
			}
		}
		if len(degraded) > 0 {
			return fmt.Errorf("rules without a healthy provider: %s", strings.Join(degraded, ", "))
		}
		return nil
	}
}
