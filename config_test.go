/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := testConfig().validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"cert without key":       func(c *Config) { c.tlsCert = "cert.pem" },
		"port out of range":      func(c *Config) { c.port = 70000 },
		"warning above capacity": func(c *Config) { c.warningThreshold = c.maxConnections + 1 },
		"zero per room":          func(c *Config) { c.maxPerRoom = 0 },
		"zero ping timeout":      func(c *Config) { c.pingTimeout = 0 },
		"too few players":        func(c *Config) { c.maxPlayers = 1 },
		"zero broadcast window":  func(c *Config) { c.broadcastWindow = 0 },
		"unknown penalty":        func(c *Config) { c.teamPenalty = "double" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

// prepare runs flag parsing and resolution the way Execute does, without
// starting the server.
func prepare(t *testing.T, args ...string) *Config {
	t.Helper()

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return cfg
}

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestFlagDefaults(t *testing.T) {
	cfg := prepare(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"))

	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.port != 8080 || cfg.maxConnections != 90 || cfg.maxPerRoom != 15 || cfg.broadcastLimit != 20 || cfg.teamPenalty != "half" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()

	configFile := filepath.Join(dir, "triviabox.yaml")
	yaml := strings.Join([]string{
		"max-per-room: 10",
		"room-ttl: 2h",
		"port: 9000",
	}, "\n")
	if err := os.WriteFile(configFile, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("TRIVIABOX_BROADCAST_LIMIT=5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	unsetenv(t, "TRIVIABOX_BROADCAST_LIMIT")

	t.Setenv("TRIVIABOX_PORT", "9090")

	cfg := prepare(t, "--config", configFile, "--env-file", envFile, "--max-players", "4")

	if cfg.port != 9090 {
		t.Errorf("environment should beat the config file: port %d", cfg.port)
	}
	if cfg.maxPerRoom != 10 || cfg.roomTTL != 2*time.Hour {
		t.Errorf("config file values not applied: %+v", cfg)
	}
	if cfg.broadcastLimit != 5 {
		t.Errorf("env file values not applied: broadcast limit %d", cfg.broadcastLimit)
	}
	if cfg.maxPlayers != 4 {
		t.Errorf("flags should win: max players %d", cfg.maxPlayers)
	}
}
