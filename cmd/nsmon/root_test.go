package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/nsmon/internal/util"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"start", "stop", "status", "check", "config", "adapters", "report", "web", "ui", "version", "completion"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, name := range []string{"init", "show", "get", "set", "path"} {
		cmd, _, err := rootCmd.Find([]string{"config", name})
		if err != nil || cmd.Name() != name {
			t.Errorf("config subcommand %q not registered", name)
		}
	}
}

func TestErrConnectedIsDetectable(t *testing.T) {
	err := fmt.Errorf("check: %w", errConnected{})
	if !errors.As(err, &errConnected{}) {
		t.Error("wrapped errConnected should be detectable")
	}
}

func TestReportFlagDefaults(t *testing.T) {
	if f := reportCmd.Flags().Lookup("last"); f == nil || f.DefValue != "24h" {
		t.Errorf("unexpected --last flag %+v", f)
	}
	if f := reportCmd.Flags().Lookup("format"); f == nil || f.DefValue != "markdown" {
		t.Errorf("unexpected --format flag %+v", f)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, util.ConfigFileName)
	if err := os.WriteFile(path, []byte(`{"scan_interval": 7}`), 0644); err != nil {
		t.Fatal(err)
	}

	prev := configs
	t.Cleanup(func() { configs = prev })
	configs = util.NewConfigStore(dir, "")
	if _, _, err := configs.Load(); err != nil {
		t.Fatal(err)
	}

	if err := configInitCmd.RunE(configInitCmd, nil); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var saved map[string]any
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved["scan_interval"] != float64(7) {
		t.Errorf("existing value should be kept, got %v", saved["scan_interval"])
	}
	for _, key := range util.SettingKeys() {
		if _, ok := saved[key]; !ok {
			t.Errorf("config init missing key %q", key)
		}
	}
}

func TestReloadConfigPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	store := util.NewConfigStore(dir, "")
	if _, _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reloadConfig(ctx, store, 10*time.Millisecond)

	if err := os.WriteFile(store.Path(), []byte(`{"detection_method": "port"}`), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Current().DetectionMethod != "port" {
		if time.Now().After(deadline) {
			t.Fatalf("config not reloaded, method %q", store.Current().DetectionMethod)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
