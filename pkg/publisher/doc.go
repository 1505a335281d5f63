// Package publisher forwards failover events to NATS so downstream collectors
// can react to provider switches without polling the HTTP API.
//
// Events are published as JSON on subjects of the form
//
//	<prefix>.<event type>.<rule id>
//
// Provider-scoped events without a rule (provider_stale) use the provider ID
// as the last token. Tokens are sanitized so rule IDs containing dots or
// wildcards cannot change the subject hierarchy.
//
// Publishing is asynchronous: HandleEvent enqueues into a bounded buffer and
// never blocks the failover service. Events are dropped and counted when the
// buffer is full or the connection is down.
package publisher
