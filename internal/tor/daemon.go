package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds the bootstrap of an embedded daemon.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon is a Tor process started with tornago and owned by the run.
// Bootstrapping takes one to three minutes.
type Daemon struct {
	mu             sync.Mutex
	process        *tornago.TorProcess
	startupTimeout time.Duration
}

// NewDaemon creates a stopped daemon. A non-positive timeout selects
// DefaultStartupTimeout.
func NewDaemon(startupTimeout time.Duration) *Daemon {
	if startupTimeout <= 0 {
		startupTimeout = DefaultStartupTimeout
	}
	return &Daemon{startupTimeout: startupTimeout}
}

// Start launches Tor on OS-assigned ports and blocks until it bootstrapped.
// Starting a running daemon is a no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.process != nil {
		return nil
	}

	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}
	process, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort on cancellation
		return err
	}
	d.process = process
	return nil
}

// Stop terminates the daemon. Stopping a stopped daemon is a no-op.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	return err
}

// Running reports whether Start succeeded and Stop was not called.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.process != nil
}

// SocksAddr returns the SOCKS5 address, or "" when stopped.
func (d *Daemon) SocksAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.process == nil {
		return ""
	}
	return d.process.SocksAddr()
}

// Transport returns a transport using the daemon's SOCKS5 port.
func (d *Daemon) Transport(timeout time.Duration) (*Transport, error) {
	addr := d.SocksAddr()
	if addr == "" {
		return nil, ErrDaemonNotRunning
	}
	return NewTransport(addr, timeout)
}
