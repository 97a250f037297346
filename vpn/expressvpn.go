package vpn

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrVPNNotConnected = errors.New("VPN not connected")
	ErrVPNConnectFail  = errors.New("failed to connect VPN")
)

type Config struct {
	Enabled     bool
	AutoConnect bool
	Region      string
}

// runner executes expressvpnctl with args and returns its stdout.
type runner func(args ...string) ([]byte, error)

func execRunner(args ...string) ([]byte, error) {
	return exec.Command("expressvpnctl", args...).Output()
}

// ExpressVPN keeps the scraper's egress on a Danish exit before a crawl.
type ExpressVPN struct {
	cfg      Config
	run      runner
	attempts int
	interval time.Duration
	// owned is set once this process has brought the tunnel up.
	owned bool
}

func NewExpressVPN(cfg Config) *ExpressVPN {
	return &ExpressVPN{cfg: cfg, run: execRunner, attempts: 30, interval: time.Second}
}

func (v *ExpressVPN) IsConnected() bool {
	out, err := v.run("status")
	if err != nil {
		return false
	}
	status := strings.ToLower(string(out))
	return strings.Contains(status, "connected") && !strings.Contains(status, "disconnected")
}

func (v *ExpressVPN) Connect() error {
	if v.IsConnected() {
		return nil
	}
	if !v.cfg.AutoConnect {
		return ErrVPNNotConnected
	}

	region := v.cfg.Region
	if region == "" {
		region = "smart"
	}
	log.Printf("Connecting VPN (%s)", region)
	if _, err := v.run("connect", region); err != nil {
		return fmt.Errorf("%w: %v", ErrVPNConnectFail, err)
	}

	for i := 0; i < v.attempts; i++ {
		time.Sleep(v.interval)
		if v.IsConnected() {
			v.owned = true
			return nil
		}
	}
	return ErrVPNConnectFail
}

// EnsureConnected is a no-op when the VPN is disabled.
func (v *ExpressVPN) EnsureConnected() error {
	if !v.cfg.Enabled || v.IsConnected() {
		return nil
	}
	return v.Connect()
}

func (v *ExpressVPN) Disconnect() error {
	_, err := v.run("disconnect")
	return err
}

// Release disconnects the VPN when this process connected it, and leaves
// a connection made by someone else alone.
func (v *ExpressVPN) Release() error {
	if !v.owned {
		return nil
	}
	log.Printf("Disconnecting VPN")
	if err := v.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	v.owned = false
	return nil
}

func (v *ExpressVPN) GetStatus() (string, error) {
	out, err := v.run("status")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
