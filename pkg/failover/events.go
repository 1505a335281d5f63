package failover

import (
	"time"
)

// EventType identifies a state change emitted by the service.
type EventType string

const (
	EventFailover         EventType = "failover"
	EventRecovery         EventType = "recovery"
	EventManualOverride   EventType = "manual_override"
	EventOverrideCleared  EventType = "override_cleared"
	EventOverrideReleased EventType = "override_released"
	EventNoHealthyBackup  EventType = "no_healthy_backup"
	EventProviderStale    EventType = "provider_stale"
	EventRuleAdded        EventType = "rule_added"
	EventRuleRemoved      EventType = "rule_removed"
	EventRuleReset        EventType = "rule_reset"
)

// EventTypes returns every event type in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventFailover,
		EventRecovery,
		EventManualOverride,
		EventOverrideCleared,
		EventOverrideReleased,
		EventNoHealthyBackup,
		EventProviderStale,
		EventRuleAdded,
		EventRuleRemoved,
		EventRuleReset,
	}
}

// Event describes a transition or notable condition.
type Event struct {
	ID           string     `json:"id"`
	Type         EventType  `json:"type"`
	RuleID       string     `json:"ruleId,omitempty"`
	ProviderID   ProviderID `json:"providerId,omitempty"`
	FromProvider ProviderID `json:"fromProvider,omitempty"`
	ToProvider   ProviderID `json:"toProvider,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Automatic    bool       `json:"automatic"`
	Timestamp    time.Time  `json:"timestamp"`
}

// EventSink receives events after the service has released its locks.
// Implementations must not block; slow consumers should buffer.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// HandleEvent calls f(ev).
func (f EventSinkFunc) HandleEvent(ev Event) { f(ev) }

// ReportObserver is notified of every applied report with the provider's post-update
// health. It runs on the reporting goroutine and must not block.
type ReportObserver interface {
	ObserveReport(Report, ProviderHealth)
}

// ReportObserverFunc adapts a function to ReportObserver.
type ReportObserverFunc func(Report, ProviderHealth)

// ObserveReport calls f(r, h).
func (f ReportObserverFunc) ObserveReport(r Report, h ProviderHealth) { f(r, h) }
