package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeOperstate(t *testing.T, root, iface, state string) {
	t.Helper()
	dir := filepath.Join(root, iface)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "operstate"), []byte(state+"\n"), 0o644); err != nil {
		t.Fatalf("write operstate: %v", err)
	}
}

func TestLinkProberReadsOperstate(t *testing.T) {
	t.Run("up interface reports online", func(t *testing.T) {
		root := t.TempDir()
		writeOperstate(t, root, "lo", "unknown")
		writeOperstate(t, root, "eth0", "down")
		writeOperstate(t, root, "wlan0", "up")

		p := NewLinkProber(nil)
		p.root = root
		if !p.Probe(context.Background()) {
			t.Fatal("expected online with one interface up")
		}
	})

	t.Run("all interfaces down reports offline", func(t *testing.T) {
		root := t.TempDir()
		writeOperstate(t, root, "lo", "unknown")
		writeOperstate(t, root, "eth0", "down")

		p := NewLinkProber(nil)
		p.root = root
		if p.Probe(context.Background()) {
			t.Fatal("expected offline with every interface down")
		}
	})

	t.Run("loopback alone fails open", func(t *testing.T) {
		root := t.TempDir()
		writeOperstate(t, root, "lo", "unknown")

		p := NewLinkProber(nil)
		p.root = root
		if !p.Probe(context.Background()) {
			t.Fatal("expected fail-open with only loopback visible")
		}
	})

	t.Run("missing sysfs tree fails open", func(t *testing.T) {
		p := NewLinkProber(nil)
		p.root = filepath.Join(t.TempDir(), "does-not-exist")
		if !p.Probe(context.Background()) {
			t.Fatal("expected fail-open when sysfs is unreadable")
		}
	})
}

func TestHTTPProberTreatsAnyResponseAsOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProber(server.URL, time.Second, nil)
	if !p.Probe(context.Background()) {
		t.Fatal("expected a 500 response to still count as reachable")
	}
}

func TestHTTPProberTransportFailureIsOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewHTTPProber(url, time.Second, nil)
	if p.Probe(context.Background()) {
		t.Fatal("expected a refused connection to read as offline")
	}
}
