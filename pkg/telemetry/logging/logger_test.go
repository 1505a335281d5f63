package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json debug", cfg: Config{Level: "debug", Format: "json"}},
		{name: "text warn", cfg: Config{Level: "warn", Format: "text"}},
		{name: "bad level", cfg: Config{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger.Slog() == nil {
				t.Error("Slog() returned nil")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn were written: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages, got: %s", out)
	}

	buf.Reset()
	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug message not written after SetLevel(debug)")
	}
	if logger.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", logger.Level())
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.With("component", "failover").Info("failover triggered", "rule_id", "equities")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "failover triggered" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "failover" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["rule_id"] != "equities" {
		t.Errorf("rule_id = %v", entry["rule_id"])
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("probe ok", "provider", "alpaca")
	if !strings.Contains(buf.String(), "provider=alpaca") {
		t.Errorf("text output missing attribute: %s", buf.String())
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Redact: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.With("api_key", "sk-live-abcdef").Warn("probe failed",
		"url", "https://api.polygon.io/v2/status?apiKey=supersecret&market=stocks",
		"header", "Bearer eyJhbGciOiJIUzI1NiJ9",
	)

	out := buf.String()
	for _, secret := range []string{"supersecret", "eyJhbGciOiJIUzI1NiJ9", "sk-live-abcdef"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked: %s", secret, out)
		}
	}
	if !strings.Contains(out, "market=stocks") {
		t.Errorf("non-sensitive query parameter was lost: %s", out)
	}
}

func TestLogger_WithoutRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("raw", "url", "https://example.com/?token=visible")
	if !strings.Contains(buf.String(), "token=visible") {
		t.Errorf("expected unredacted output when Redact is false: %s", buf.String())
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRuleID(ctx, "equities")
	ctx = WithProvider(ctx, "ib")

	logger.WarnContext(ctx, "forced failover")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := map[string]string{"request_id": "req-1", "rule_id": "equities", "provider": "ib"}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %s", k, entry[k], v)
		}
	}

	buf.Reset()
	logger.WithContext(ctx).Info("scoped")
	if !strings.Contains(buf.String(), `"rule_id":"equities"`) {
		t.Errorf("WithContext did not carry fields: %s", buf.String())
	}
}

func TestLogger_WithContextEmpty(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := logger.WithContext(context.Background()); got != logger {
		t.Error("WithContext on an empty context should return the same logger")
	}
}
