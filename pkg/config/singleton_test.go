package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitialize(t *testing.T) {
	resetForTesting()
	t.Cleanup(resetForTesting)

	dir := t.TempDir()
	path := filepath.Join(dir, "feedwatch.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FEEDWATCH_SERVER_LISTEN_ADDRESS=127.0.0.1:7100\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEEDWATCH_SERVER_LISTEN_ADDRESS", "")
	os.Unsetenv("FEEDWATCH_SERVER_LISTEN_ADDRESS")

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("GetConfig() = nil after Initialize")
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7100" {
		t.Errorf("listen address = %q, want value from .env", cfg.Server.ListenAddress)
	}

	if err := Initialize(filepath.Join(dir, "other.yaml")); err != nil {
		t.Errorf("second Initialize() error = %v, want ignored", err)
	}
	if GetConfig() != cfg {
		t.Error("second Initialize() replaced the configuration")
	}
}

func TestReloadConfig(t *testing.T) {
	resetForTesting()
	t.Cleanup(resetForTesting)

	path := writeConfig(t, sampleConfig)
	SetConfig(Default())

	if _, err := ReloadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("ReloadConfig() of a missing file succeeded")
	}
	if GetConfig().Server.ListenAddress != DefaultListenAddress {
		t.Error("failed reload replaced the configuration")
	}

	cfg, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if GetConfig() != cfg || cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("reloaded config not installed: %q", GetConfig().Server.ListenAddress)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetForTesting()
	t.Cleanup(resetForTesting)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic")
		}
	}()
	MustGetConfig()
}
