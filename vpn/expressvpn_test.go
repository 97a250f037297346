package vpn

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCtl struct {
	connected bool
	calls     []string
	failWith  error
}

func (f *fakeCtl) run(args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	switch args[0] {
	case "status":
		if f.connected {
			return []byte("Connected to Denmark\n"), nil
		}
		return []byte("Disconnected\n"), nil
	case "connect":
		if f.failWith != nil {
			return nil, f.failWith
		}
		f.connected = true
	case "disconnect":
		f.connected = false
	}
	return nil, nil
}

func newTestVPN(cfg Config, ctl *fakeCtl) *ExpressVPN {
	v := NewExpressVPN(cfg)
	v.run = ctl.run
	v.attempts = 2
	v.interval = time.Millisecond
	return v
}

func TestEnsureConnected_Disabled(t *testing.T) {
	ctl := &fakeCtl{}
	if err := newTestVPN(Config{}, ctl).EnsureConnected(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("disabled VPN must not call expressvpnctl, got %v", ctl.calls)
	}
}

func TestEnsureConnected_Connects(t *testing.T) {
	ctl := &fakeCtl{}
	v := newTestVPN(Config{Enabled: true, AutoConnect: true, Region: "denmark"}, ctl)
	if err := v.EnsureConnected(); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if status, _ := v.GetStatus(); status != "Connected to Denmark" {
		t.Fatalf("unexpected status %q", status)
	}

	found := false
	for _, c := range ctl.calls {
		if c == "connect denmark" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected connect call, got %v", ctl.calls)
	}
}

func TestEnsureConnected_NoAutoConnect(t *testing.T) {
	v := newTestVPN(Config{Enabled: true}, &fakeCtl{})
	if err := v.EnsureConnected(); !errors.Is(err, ErrVPNNotConnected) {
		t.Fatalf("expected ErrVPNNotConnected, got %v", err)
	}
}

func TestConnect_Failure(t *testing.T) {
	v := newTestVPN(Config{Enabled: true, AutoConnect: true}, &fakeCtl{failWith: errors.New("exit 1")})
	if err := v.Connect(); !errors.Is(err, ErrVPNConnectFail) {
		t.Fatalf("expected ErrVPNConnectFail, got %v", err)
	}
}

func TestRelease_DisconnectsOwnConnection(t *testing.T) {
	ctl := &fakeCtl{}
	v := newTestVPN(Config{Enabled: true, AutoConnect: true, Region: "denmark"}, ctl)

	if err := v.EnsureConnected(); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if err := v.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if ctl.connected {
		t.Fatal("expected VPN to be disconnected")
	}
	if got := ctl.calls[len(ctl.calls)-1]; got != "disconnect" {
		t.Fatalf("expected disconnect call, got %q", got)
	}

	n := len(ctl.calls)
	if err := v.Release(); err != nil || len(ctl.calls) != n {
		t.Fatalf("second Release should do nothing, calls %v", ctl.calls[n:])
	}
}

func TestRelease_LeavesExistingConnection(t *testing.T) {
	ctl := &fakeCtl{connected: true}
	v := newTestVPN(Config{Enabled: true, AutoConnect: true}, ctl)

	if err := v.EnsureConnected(); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if err := v.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !ctl.connected {
		t.Fatal("a connection this process did not make must be left up")
	}
	for _, c := range ctl.calls {
		if c == "disconnect" {
			t.Fatalf("unexpected disconnect, calls %v", ctl.calls)
		}
	}
}
