package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "Queue is empty")
}

func TestEnqueueAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"enqueue", "http://unreachable.example/hook",
		"-X", "POST", "-d", `{"event":"boot"}`, "--class", "telemetry")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, stdout, "Queued request")
	requireContains(t, stdout, "class telemetry")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "http://unreachable.example/hook")
	requireContains(t, stdout, "Telemetry")
	requireContains(t, stdout, "POST")
}

func TestQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.socketPath, env.configPath,
		"enqueue", "http://unreachable.example/a", "--class", "reports"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(stdout), &items); err != nil {
		t.Fatalf("unmarshal list output: %v\n%s", err, stdout)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0]["class"] != "reports" {
		t.Errorf("class = %v, want reports", items[0]["class"])
	}
	if items[0]["url"] != "http://unreachable.example/a" {
		t.Errorf("url = %v", items[0]["url"])
	}

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "list", "--json", "--class", "other")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("filtered list = %q, want []", strings.TrimSpace(stdout))
	}
}

func TestQueueDepthAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, spec := range [][]string{
		{"enqueue", "http://unreachable.example/one", "--class", "telemetry"},
		{"enqueue", "http://unreachable.example/two"},
	} {
		if _, _, err := runCLI(t, env.socketPath, env.configPath, spec...); err != nil {
			t.Fatalf("enqueue %v: %v", spec, err)
		}
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "depth", "--json")
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	var depth struct {
		Total   int            `json:"total"`
		ByClass map[string]int `json:"byClass"`
	}
	if err := json.Unmarshal([]byte(stdout), &depth); err != nil {
		t.Fatalf("unmarshal depth: %v", err)
	}
	if depth.Total != 2 {
		t.Fatalf("total = %d, want 2", depth.Total)
	}
	if depth.ByClass["telemetry"] != 1 || depth.ByClass["default"] != 1 {
		t.Errorf("byClass = %v", depth.ByClass)
	}

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "clear", "--class", "telemetry")
	if err != nil {
		t.Fatalf("queue clear --class: %v", err)
	}
	requireContains(t, stdout, "Removed 1 pending requests from class telemetry")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, stdout, "Removed 1 pending requests")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "Queue is empty")
}

func TestQueueRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.socketPath, env.configPath,
		"enqueue", "http://unreachable.example/gone"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, stdout, "Removed request 1")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "remove", "99")
	if err != nil {
		t.Fatalf("queue remove missing: %v", err)
	}
	requireContains(t, stdout, "Request 99 not found")

	if _, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "remove", "zero"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestQueueFlush(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.socketPath, env.configPath,
		"enqueue", "http://unreachable.example/stuck"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "flush")
	if err != nil {
		t.Fatalf("queue flush: %v", err)
	}
	requireContains(t, stdout, "Flush complete")
}

func TestQueueHealth(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, stdout, "Pending requests: 0")
	requireContains(t, stdout, "Integrity check: yes")
	requireContains(t, stdout, "Missing columns: none")
}

func TestQueueCommandsOffline(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	stdout, _, err := runCLI(t, cfg.Paths.Socket, configPath,
		"enqueue", "http://example.com/later", "-X", "PUT")
	if err != nil {
		t.Fatalf("offline enqueue: %v", err)
	}
	requireContains(t, stdout, "Queued request 1")

	stdout, _, err = runCLI(t, cfg.Paths.Socket, configPath, "queue", "list")
	if err != nil {
		t.Fatalf("offline list: %v", err)
	}
	requireContains(t, stdout, "http://example.com/later")
	requireContains(t, stdout, "PUT")

	stdout, _, err = runCLI(t, cfg.Paths.Socket, configPath, "queue", "depth", "--json")
	if err != nil {
		t.Fatalf("offline depth: %v", err)
	}
	var depth struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &depth); err != nil {
		t.Fatalf("unmarshal depth: %v", err)
	}
	if depth.Total != 1 {
		t.Fatalf("total = %d, want 1", depth.Total)
	}

	stdout, _, err = runCLI(t, cfg.Paths.Socket, configPath, "queue", "health")
	if err != nil {
		t.Fatalf("offline health: %v", err)
	}
	requireContains(t, stdout, "Pending requests: 1")
	requireContains(t, stdout, "Integrity check: yes")
}

func TestOfflineEnqueueValidation(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	if _, _, err := runCLI(t, cfg.Paths.Socket, configPath, "enqueue", "ftp://example.com/x"); err == nil {
		t.Fatal("expected scheme validation error")
	} else if !strings.Contains(err.Error(), "scheme") {
		t.Fatalf("unexpected error: %v", err)
	}
}
