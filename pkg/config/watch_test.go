package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	resetForTesting()
	t.Cleanup(resetForTesting)

	path := writeConfig(t, sampleConfig)
	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	var reloads atomic.Int32
	var lastRules atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) error {
			lastRules.Store(int32(len(cfg.Failover.Rules)))
			reloads.Add(1)
			return nil
		})
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	updated := `
failover:
  rules:
    - id: "solo"
      primary: "ib"
      backups: ["alpaca"]
`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("watcher did not reload after file change")
	}
	if lastRules.Load() != 1 {
		t.Errorf("reloaded rules = %d, want 1", lastRules.Load())
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestWatcher_InvalidFileKeepsConfig(t *testing.T) {
	resetForTesting()
	t.Cleanup(resetForTesting)

	path := writeConfig(t, sampleConfig)
	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = w.Watch(ctx, func(*Config) error {
			reloads.Add(1)
			return nil
		})
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("failover:\n  mode: replay\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if reloads.Load() != 0 {
		t.Error("invalid configuration was handed to the reload callback")
	}
	cancel()
	_ = w.Stop()
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}

	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran after Stop: %d", got)
	}
}
