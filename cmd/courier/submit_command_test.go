package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSubmitDelivered(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://api.example.com/orders", "-X", "POST", "-d", `{"id":7}`,
		"-H", "Content-Type: application/json")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, stdout, "Delivered: HTTP 200")
	requireContains(t, stdout, "ok")
}

func TestSubmitQueuedOnTransportFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://unreachable.example/orders")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, stdout, "queued as request 1")

	stdout, _, err = runCLI(t, env.socketPath, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "http://unreachable.example/orders")
}

func TestSubmitJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://api.example.com/ping", "--json")
	if err != nil {
		t.Fatalf("submit --json: %v", err)
	}
	var resp struct {
		Delivered  bool `json:"delivered"`
		StatusCode int  `json:"status_code"`
		Queued     bool `json:"queued"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Delivered || resp.StatusCode != 200 || resp.Queued {
		t.Errorf("response = %+v", resp)
	}
}

func TestSubmitBodyFile(t *testing.T) {
	env := setupCLITestEnv(t)

	bodyPath := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(bodyPath, []byte(`{"bulk":true}`), 0o644); err != nil {
		t.Fatalf("write body file: %v", err)
	}

	stdout, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://api.example.com/bulk", "--body-file", bodyPath)
	if err != nil {
		t.Fatalf("submit --body-file: %v", err)
	}
	requireContains(t, stdout, "Delivered: HTTP 200")
}

func TestSubmitFlagValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://api.example.com", "-H", "not-a-header"); err == nil {
		t.Fatal("expected header parse error")
	}

	_, _, err := runCLI(t, env.socketPath, env.configPath,
		"submit", "http://api.example.com", "-d", "x", "--body-file", "/tmp/nope")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestSubmitRequiresDaemon(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)

	_, _, err := runCLI(t, cfg.Paths.Socket, configPath, "submit", "http://api.example.com/x")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !strings.Contains(err.Error(), "courier daemon start") {
		t.Fatalf("unexpected error: %v", err)
	}
}
