package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCacheSetGetDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"cache", "set", "settings", "theme", "dark", "--ttl", "1h")
	if err != nil {
		t.Fatalf("cache set: %v", err)
	}
	requireContains(t, stdout, "Stored cache entry settings/theme")
	requireContains(t, stdout, "expires in 1h")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "cache", "get", "settings", "theme")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	requireContains(t, stdout, "dark")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath,
		"cache", "get", "settings", "theme", "--json")
	if err != nil {
		t.Fatalf("cache get --json: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(stdout), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if entry["type"] != "settings" || entry["key"] != "theme" {
		t.Errorf("entry = %v", entry)
	}
	if v, ok := entry["expiresAt"].(string); !ok || v == "" {
		t.Error("expected expiresAt to be set")
	}

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "cache", "delete", "settings", "theme")
	if err != nil {
		t.Fatalf("cache delete: %v", err)
	}
	requireContains(t, stdout, "Deleted cache entry settings/theme")

	if _, _, err := runCLI(t, env.socketPath, env.configPath, "cache", "get", "settings", "theme"); err == nil {
		t.Fatal("expected error for missing entry")
	}

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "cache", "delete", "settings", "theme")
	if err != nil {
		t.Fatalf("cache delete missing: %v", err)
	}
	requireContains(t, stdout, "not found")
}

func TestCacheStats(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.socketPath, env.configPath,
		"cache", "set", "responses", "orders", `[{"id":1}]`); err != nil {
		t.Fatalf("cache set: %v", err)
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "cache", "stats", "--json")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var usage struct {
		Entries   int            `json:"entries"`
		UsedBytes int64          `json:"usedBytes"`
		ByType    map[string]int `json:"byType"`
	}
	if err := json.Unmarshal([]byte(stdout), &usage); err != nil {
		t.Fatalf("unmarshal usage: %v", err)
	}
	if usage.Entries != 1 || usage.UsedBytes == 0 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.ByType["responses"] != 1 {
		t.Errorf("byType = %v", usage.ByType)
	}

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats text: %v", err)
	}
	requireContains(t, stdout, "Entries: 1")
	requireContains(t, stdout, "responses")
}

func TestCacheSweep(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	if _, _, err := runCLI(t, cfg.Paths.Socket, configPath,
		"cache", "set", "tokens", "session", "abc", "--ttl", "1ms"); err != nil {
		t.Fatalf("cache set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	stdout, _, err := runCLI(t, cfg.Paths.Socket, configPath, "cache", "sweep")
	if err != nil {
		t.Fatalf("cache sweep: %v", err)
	}
	requireContains(t, stdout, "Removed 1 expired cache entries")
}

func TestCacheSweepNothingExpired(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "cache", "sweep")
	if err != nil {
		t.Fatalf("cache sweep: %v", err)
	}
	requireContains(t, stdout, "Removed 0 expired cache entries")
}

func TestCacheCommandsOffline(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	stdout, _, err := runCLI(t, cfg.Paths.Socket, configPath,
		"cache", "set", "settings", "units", "metric")
	if err != nil {
		t.Fatalf("offline cache set: %v", err)
	}
	requireContains(t, stdout, "Stored cache entry settings/units")

	stdout, _, err = runCLI(t, cfg.Paths.Socket, configPath, "cache", "get", "settings", "units")
	if err != nil {
		t.Fatalf("offline cache get: %v", err)
	}
	requireContains(t, stdout, "metric")

	stdout, _, err = runCLI(t, cfg.Paths.Socket, configPath, "cache", "stats", "--json")
	if err != nil {
		t.Fatalf("offline cache stats: %v", err)
	}
	var usage struct {
		Entries int `json:"entries"`
	}
	if err := json.Unmarshal([]byte(stdout), &usage); err != nil {
		t.Fatalf("unmarshal usage: %v", err)
	}
	if usage.Entries != 1 {
		t.Errorf("entries = %d, want 1", usage.Entries)
	}
}

func TestCacheSetRequiresPayload(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	if _, _, err := runCLI(t, cfg.Paths.Socket, configPath, "cache", "set", "settings", "empty"); err == nil {
		t.Fatal("expected missing payload error")
	}
}
