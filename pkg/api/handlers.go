package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/failover"
	"meridian-hq/feedwatch/pkg/telemetry/logging"
	"meridian-hq/feedwatch/pkg/telemetry/tracing"
)

const (
	maxBodyBytes = 64 << 10

	defaultFailureReason = "reported failure"
	simulatedMessage     = "no streaming failover session is running"
)

// Options configures the handlers beyond the registry.
type Options struct {
	// Mode is reported by GET /failover/config.
	Mode string

	// OverridePolicy is reported when no service is registered.
	OverridePolicy failover.OverridePolicy

	// ConfiguredRules returns the rule definitions reported when no service is
	// registered. Optional.
	ConfiguredRules func() []failover.Rule

	// Events backs GET /failover/events. Nil disables the route with 503.
	Events events.Store

	// QueryDefaultLimit and QueryMaxLimit bound event queries.
	QueryDefaultLimit int
	QueryMaxLimit     int

	// Stream serves GET /failover/stream when set.
	Stream *StreamHub
}

// Handlers serves the failover routes.
type Handlers struct {
	registry *failover.Registry
	opts     Options
	logger   *slog.Logger
}

// NewHandlers creates handlers reading from registry.
func NewHandlers(registry *failover.Registry, opts Options) *Handlers {
	if opts.QueryDefaultLimit <= 0 {
		opts.QueryDefaultLimit = events.DefaultLimit
	}
	if opts.QueryMaxLimit <= 0 {
		opts.QueryMaxLimit = events.MaxLimit
	}
	if opts.QueryDefaultLimit > opts.QueryMaxLimit {
		opts.QueryDefaultLimit = opts.QueryMaxLimit
	}
	return &Handlers{
		registry: registry,
		opts:     opts,
		logger:   slog.Default().With("component", "api"),
	}
}

// Register adds every failover route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /failover/config", h.getConfig)
	mux.HandleFunc("GET /failover/rules", h.listRules)
	mux.HandleFunc("GET /failover/rules/{ruleId}", h.getRule)
	mux.HandleFunc("POST /failover/{ruleId}/force", h.forceFailover)
	mux.HandleFunc("DELETE /failover/{ruleId}/override", h.clearOverride)
	mux.HandleFunc("GET /failover/health", h.providerHealth)
	mux.HandleFunc("POST /failover/health/report", h.reportHealth)
	mux.HandleFunc("GET /failover/events", h.listEvents)
	if h.opts.Stream != nil {
		mux.Handle("GET /failover/stream", h.opts.Stream)
	}
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{Mode: h.opts.Mode}

	if svc, ok := h.registry.Service(); ok {
		resp.OverridePolicy = svc.OverridePolicy()
		resp.Rules = svc.Rules()
	} else {
		resp.IsSimulated = true
		resp.OverridePolicy = h.opts.OverridePolicy
		if h.opts.ConfiguredRules != nil {
			resp.Rules = h.opts.ConfiguredRules()
		}
	}
	if resp.Rules == nil {
		resp.Rules = []failover.Rule{}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handlers) listRules(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registry.Service()
	if !ok {
		writeJSON(w, r, http.StatusOK, RulesResponse{IsSimulated: true, Rules: []failover.RuleSnapshot{}})
		return
	}
	writeJSON(w, r, http.StatusOK, RulesResponse{Rules: svc.GetRuleSnapshots()})
}

func (h *Handlers) getRule(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registry.Service()
	if !ok {
		writeJSON(w, r, http.StatusOK, RuleResponse{IsSimulated: true})
		return
	}

	snap, err := svc.GetRuleSnapshot(r.PathValue("ruleId"))
	if err != nil {
		writeFailoverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, RuleResponse{Rule: &snap})
}

func (h *Handlers) forceFailover(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("ruleId")
	ctx := logging.WithRuleID(r.Context(), ruleID)

	var req ForceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProviderID) == "" {
		WriteError(w, r, http.StatusBadRequest, CodeMissingField, "providerId is required")
		return
	}

	svc, ok := h.registry.Service()
	if !ok {
		writeSimulatedCommand(w, r)
		return
	}

	target := failover.ProviderID(req.ProviderID)
	tracing.SetRuleAttributes(trace.SpanFromContext(ctx), ruleID, target)
	if err := svc.ForceFailoverErr(ruleID, target); err != nil {
		writeFailoverError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "manual failover applied",
		append(logging.ContextFields(ctx), "target", target)...,
	)

	snap, err := svc.GetRuleSnapshot(ruleID)
	if err != nil {
		// Removed by a concurrent rule reload.
		writeFailoverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, CommandResponse{
		Success: true,
		Changed: true,
		Message: fmt.Sprintf("rule %s pinned to %s", ruleID, target),
		Rule:    &snap,
	})
}

func (h *Handlers) clearOverride(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("ruleId")
	ctx := logging.WithRuleID(r.Context(), ruleID)
	tracing.SetRuleAttributes(trace.SpanFromContext(ctx), ruleID, "")

	svc, ok := h.registry.Service()
	if !ok {
		writeSimulatedCommand(w, r)
		return
	}

	cleared, err := svc.ClearOverride(ruleID)
	if err != nil {
		writeFailoverError(w, r, err)
		return
	}
	if cleared {
		h.logger.InfoContext(ctx, "manual override cleared", logging.ContextFields(ctx)...)
	}

	snap, err := svc.GetRuleSnapshot(ruleID)
	if err != nil {
		writeFailoverError(w, r, err)
		return
	}

	msg := "no manual override was set"
	if cleared {
		msg = "manual override cleared"
	}
	writeJSON(w, r, http.StatusOK, CommandResponse{
		Success: true,
		Changed: cleared,
		Message: msg,
		Rule:    &snap,
	})
}

func (h *Handlers) providerHealth(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registry.Service()
	if !ok {
		writeJSON(w, r, http.StatusOK, HealthResponse{IsSimulated: true, Providers: []failover.ProviderHealthSnapshot{}})
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Providers: svc.GetProviderHealthSnapshots()})
}

func (h *Handlers) reportHealth(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateReport(&req); msg != "" {
		code := CodeInvalidValue
		if req.ProviderID == "" || (req.Success == nil && req.Quality == nil) {
			code = CodeMissingField
		}
		WriteError(w, r, http.StatusBadRequest, code, msg)
		return
	}

	svc, ok := h.registry.Service()
	if !ok {
		writeJSON(w, r, http.StatusNotImplemented, ReportResponse{IsSimulated: true})
		return
	}

	id := failover.ProviderID(req.ProviderID)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String(tracing.AttrProvider, string(id)))
	if req.Success != nil {
		if *req.Success {
			svc.ReportSuccess(id, req.LatencyMs)
		} else {
			reason := req.Reason
			if reason == "" {
				reason = defaultFailureReason
			}
			svc.ReportFailure(id, reason)
		}
	}
	if req.Quality != nil {
		svc.ReportQuality(id, *req.Quality)
	}

	resp := ReportResponse{Accepted: true}
	if health, ok := svc.Tracker().Snapshot(id); ok {
		resp.Provider = &health
	}
	writeJSON(w, r, http.StatusAccepted, resp)
}

// validateReport returns a client-facing problem description, or "".
func validateReport(req *ReportRequest) string {
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	switch {
	case req.ProviderID == "":
		return "providerId is required"
	case req.Success == nil && req.Quality == nil:
		return "one of success or quality is required"
	case req.LatencyMs < 0 || math.IsNaN(req.LatencyMs) || math.IsInf(req.LatencyMs, 0):
		return "latencyMs must be a non-negative number"
	case req.Quality != nil && (*req.Quality < 0 || *req.Quality > 1 || math.IsNaN(*req.Quality)):
		return "quality must be between 0 and 1"
	}
	return ""
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.opts.Events == nil {
		WriteError(w, r, http.StatusServiceUnavailable, CodeEventsDisabled, "event log is disabled")
		return
	}

	q, err := parseEventQuery(r)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeInvalidValue, err.Error())
		return
	}
	events.ApplyDefaults(q, h.opts.QueryDefaultLimit)
	if err := events.Validate(q, h.opts.QueryMaxLimit); err != nil {
		writeFailoverError(w, r, err)
		return
	}

	records, err := h.opts.Events.Query(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "event query failed", "error", err)
		writeFailoverError(w, r, err)
		return
	}
	total, err := h.opts.Events.Count(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "event count failed", "error", err)
		writeFailoverError(w, r, err)
		return
	}
	if records == nil {
		records = []*events.Record{}
	}

	writeJSON(w, r, http.StatusOK, EventsResponse{
		Events: records,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// parseEventQuery reads limit, offset, rule, provider, type, since, until and
// order from the query string.
func parseEventQuery(r *http.Request) (*events.Query, error) {
	v := r.URL.Query()
	q := &events.Query{
		RuleID:     v.Get("rule"),
		ProviderID: failover.ProviderID(v.Get("provider")),
		Type:       failover.EventType(v.Get("type")),
		SortOrder:  v.Get("order"),
	}

	var err error
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("invalid limit %q", s)
		}
	}
	if s := v.Get("offset"); s != "" {
		if q.Offset, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("invalid offset %q", s)
		}
	}
	if q.StartTime, err = parseTimeParam(v.Get("since")); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTimeParam(v.Get("until")); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: must be RFC3339", s)
	}
	return &t, nil
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "request body is required")
		case errors.As(err, &maxErr):
			WriteError(w, r, http.StatusRequestEntityTooLarge, CodeInvalidValue, "request body too large")
		default:
			WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

func writeSimulatedCommand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotImplemented, CommandResponse{
		IsSimulated: true,
		Message:     simulatedMessage,
	})
}
