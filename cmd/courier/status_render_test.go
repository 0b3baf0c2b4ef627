package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Running", statusOK, "pid 42", false)
	if !strings.HasPrefix(line, statusIndent+"Running:") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "[OK] pid 42") {
		t.Errorf("line = %q", line)
	}
	if strings.Contains(line, ansiGreen) {
		t.Errorf("unexpected color in %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Connectivity", statusWarn, "offline", true)
	if !strings.Contains(line, ansiYellow+"[WARN] offline"+ansiReset) {
		t.Errorf("line = %q", line)
	}

	info := renderStatusLine("Probe", statusInfo, "every 30s", true)
	if strings.Contains(info, ansiReset) {
		t.Errorf("info lines should stay uncolored, got %q", info)
	}
}

func TestStatusKindLabel(t *testing.T) {
	cases := map[statusKind]string{
		statusOK:    "OK",
		statusWarn:  "WARN",
		statusError: "ERROR",
		statusInfo:  "INFO",
	}
	for kind, want := range cases {
		if got := statusKindLabel(kind); got != want {
			t.Errorf("statusKindLabel(%d) = %q, want %q", kind, got, want)
		}
	}
}

func TestBoolStatusKind(t *testing.T) {
	if boolStatusKind(true) != statusOK {
		t.Error("expected OK for true")
	}
	if boolStatusKind(false) != statusError {
		t.Error("expected ERROR for false")
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Queue", false)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "== Queue ==" {
		t.Errorf("heading = %q", lines[0])
	}
	if lines[1] != strings.Repeat("-", len("== Queue ==")) {
		t.Errorf("underline = %q", lines[1])
	}

	colored := renderSectionHeader("Queue", true)
	if !strings.HasPrefix(colored[0], ansiBlue) {
		t.Errorf("colored heading = %q", colored[0])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Error("buffers are never terminals")
	}
}
