package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meridian-hq/feedwatch/pkg/api"
	"meridian-hq/feedwatch/pkg/cli"
	"meridian-hq/feedwatch/pkg/events/recorder"
	"meridian-hq/feedwatch/pkg/events/storage"
	"meridian-hq/feedwatch/pkg/failover"
)

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cfgFile = "feedwatch.yaml"
	verbose = false
	serverAddr = "127.0.0.1:8090"
	outputFmt = "text"
	timeout = 5 * time.Second
	statusFlags.providers = false
	eventsFlags = struct {
		rule     string
		provider string
		typ      string
		since    time.Duration
		limit    int
	}{}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// newInstance serves the failover API over a service with one rule. A false
// streaming leaves the registry empty.
func newInstance(t *testing.T, streaming bool) (*httptest.Server, *failover.Service) {
	t.Helper()

	svc, err := failover.NewService(failover.Config{}, []failover.Rule{{
		ID:                "equities-rt",
		PrimaryProviderID: "ib",
		BackupProviderIDs: []failover.ProviderID{"alpaca"},
		FailoverThreshold: 2,
		RecoveryThreshold: 1,
	}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	store := storage.NewMemoryStorage(100)
	rec := recorder.NewRecorder(store, nil)
	svc.AddEventSink(rec)
	t.Cleanup(func() { rec.Close() })

	reg := failover.NewRegistry()
	if streaming {
		reg.Set(svc)
	}
	mux := http.NewServeMux()
	api.NewHandlers(reg, api.Options{Mode: "streaming", Events: store}).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run": false, "validate": false, "status": false, "force": false,
		"clear": false, "events": false, "version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestStatusCommand(t *testing.T) {
	srv, svc := newInstance(t, true)
	svc.ReportFailure("ib", "timeout")
	svc.ReportFailure("ib", "timeout")

	out, _, err := execute(t, "status", "--server", srv.URL)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"RULE", "equities-rt", "failover", "alpaca"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusProvidersJSON(t *testing.T) {
	srv, svc := newInstance(t, true)
	svc.ReportSuccess("ib", 12)

	out, _, err := execute(t, "status", "--providers", "--output", "json", "--server", srv.URL)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	var providers []failover.ProviderHealthSnapshot
	if err := json.Unmarshal([]byte(out), &providers); err != nil {
		t.Fatalf("output is not a provider list: %v\n%s", err, out)
	}
	if len(providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(providers))
	}
	if providers[0].ProviderID != "alpaca" && providers[1].ProviderID != "alpaca" {
		t.Errorf("alpaca missing from %+v", providers)
	}
}

func TestStatusSimulated(t *testing.T) {
	srv, _ := newInstance(t, false)

	_, stderr, err := execute(t, "status", "--server", srv.URL)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(stderr, "no streaming session") {
		t.Errorf("stderr = %q, want simulated note", stderr)
	}
}

func TestForceAndClearCommands(t *testing.T) {
	srv, svc := newInstance(t, true)

	out, _, err := execute(t, "force", "equities-rt", "alpaca", "--server", srv.URL)
	if err != nil {
		t.Fatalf("force error = %v", err)
	}
	if !strings.Contains(out, "pinned to alpaca") {
		t.Errorf("force output = %q", out)
	}
	snap, _ := svc.GetRuleSnapshot("equities-rt")
	if snap.Mode != failover.ModeManualOverride {
		t.Fatalf("mode after force = %s, want %s", snap.Mode, failover.ModeManualOverride)
	}

	out, _, err = execute(t, "clear", "equities-rt", "--server", srv.URL, "--output", "json")
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	var resp api.CommandResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("clear output is not JSON: %v\n%s", err, out)
	}
	if !resp.Success || !resp.Changed {
		t.Errorf("clear response = %+v, want success and changed", resp)
	}
}

func TestForceErrors(t *testing.T) {
	srv, _ := newInstance(t, true)
	simulated, _ := newInstance(t, false)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"unknown rule", []string{"force", "nope", "alpaca", "--server", srv.URL}, cli.ExitNotFound},
		{"invalid target", []string{"force", "equities-rt", "polygon", "--server", srv.URL}, cli.ExitRemote},
		{"no session", []string{"force", "equities-rt", "alpaca", "--server", simulated.URL}, cli.ExitRemote},
		{"bad output", []string{"force", "equities-rt", "alpaca", "--output", "xml", "--server", srv.URL}, cli.ExitConfig},
		{"missing args", []string{"force", "equities-rt"}, cli.ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.wantCode)
			}
		})
	}
}

func TestEventsCommand(t *testing.T) {
	srv, svc := newInstance(t, true)
	if err := svc.ForceFailoverErr("equities-rt", "alpaca"); err != nil {
		t.Fatalf("ForceFailoverErr() error = %v", err)
	}

	// The recorder writes asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		out, _, err := execute(t, "events", "--rule", "equities-rt", "--output", "csv", "--server", srv.URL)
		if err != nil {
			t.Fatalf("events error = %v", err)
		}
		if strings.Contains(out, "manual_override") {
			if !strings.HasPrefix(out, "TIME,TYPE,RULE") {
				t.Errorf("csv output missing header:\n%s", out)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("manual_override event never listed:\n%s", out)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEventsCommandRejectsNegativeSince(t *testing.T) {
	_, _, err := execute(t, "events", "--since", "-1h")
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedwatch.yaml")
	content := `
failover:
  rules:
    - id: equities-rt
      primary: ib
      backups: [alpaca, polygon]
      failover_threshold: 3
      recovery_threshold: 2
      max_latency_ms: 250
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"is valid", "equities-rt", "alpaca,polygon", "250ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommandInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedwatch.yaml")
	content := `
failover:
  rules:
    - id: broken
      primary: ib
      backups: [ib]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "validate", "--config", path)
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Fatalf("ExitCode(%v) = %d, want %d", err, cli.ExitCode(err), cli.ExitConfig)
	}
}
