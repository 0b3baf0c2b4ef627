package connectivity

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestNetlinkMatcher(t *testing.T) {
	w := newNetlinkWatcher(nil, nil)
	matcher := w.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.REMOVE, netlink.CHANGE, netlink.KObjAction("move")} {
		event := netlink.UEvent{
			Action: action,
			Env:    map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"},
		}
		if !matcher.Evaluate(event) {
			t.Errorf("expected matcher to accept net %s event", action)
		}
	}

	blockEvent := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if matcher.Evaluate(blockEvent) {
		t.Error("expected matcher to reject non-net subsystem events")
	}
}

func TestNetlinkHandleEventTriggersRecheck(t *testing.T) {
	var calls int
	w := newNetlinkWatcher(nil, func() { calls++ })

	w.handleEvent(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"},
	})
	if calls != 1 {
		t.Fatalf("expected one recheck, got %d", calls)
	}

	w.handleEvent(netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "net", "DEVPATH": "/devices/pci0000:00/0000:00:14.3/net/wlp3s0"},
	})
	if calls != 2 {
		t.Fatalf("expected a second recheck, got %d", calls)
	}
}

func TestExtractInterface(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"interface env wins", map[string]string{"INTERFACE": "eth0", "DEVPATH": "/devices/x/net/ignored"}, "eth0"},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/pci0000:00/0000:00:14.3/net/wlp3s0"}, "wlp3s0"},
		{"empty event", map[string]string{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractInterface(netlink.UEvent{Env: tc.env})
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNetlinkWatcherNilSafety(t *testing.T) {
	t.Run("nil watcher is inert", func(t *testing.T) {
		var w *netlinkWatcher
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil watcher should return nil, got %v", err)
		}
		w.Stop()
		if w.Running() {
			t.Error("expected Running() false for nil watcher")
		}
	})

	t.Run("stop before start is safe", func(t *testing.T) {
		w := newNetlinkWatcher(nil, nil)
		w.Stop()
		w.Stop()
		if w.Running() {
			t.Error("expected Running() false for unstarted watcher")
		}
	})
}
