package probe

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cruxstack/email-reachability-go/internal/config"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

// DialFunc opens a raw TCP connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// PortProbe checks once per process whether a well-known mail host accepts a
// TCP connection on the SMTP port. The status moves from unknown to open or
// blocked exactly once and is read-only afterwards.
type PortProbe struct {
	addr     string
	timeout  time.Duration
	disabled bool
	dial     DialFunc

	group singleflight.Group

	mu     sync.RWMutex
	status types.PortReachability
}

// NewPortProbe creates a probe against cfg.PortProbeHost on cfg.SMTPPort.
func NewPortProbe(cfg *config.Config) *PortProbe {
	d := &net.Dialer{}
	return &PortProbe{
		addr:     net.JoinHostPort(cfg.PortProbeHost, strconv.Itoa(cfg.SMTPPort)),
		timeout:  cfg.PortProbeTimeout,
		disabled: cfg.PortProbeDisabled,
		dial:     d.DialContext,
		status:   types.PortUnknown,
	}
}

// NewPortProbeWithDialer is NewPortProbe with an injected dialer.
func NewPortProbeWithDialer(addr string, timeout time.Duration, dial DialFunc) *PortProbe {
	return &PortProbe{
		addr:    addr,
		timeout: timeout,
		dial:    dial,
		status:  types.PortUnknown,
	}
}

// Status returns the cached reachability, running the probe on first use.
// Concurrent first callers share a single probe.
func (p *PortProbe) Status(ctx context.Context) types.PortReachability {
	if p.disabled {
		return types.PortOpen
	}

	p.mu.RLock()
	status := p.status
	p.mu.RUnlock()
	if status != types.PortUnknown {
		return status
	}

	v, _, _ := p.group.Do("port", func() (any, error) {
		p.mu.RLock()
		cached := p.status
		p.mu.RUnlock()
		if cached != types.PortUnknown {
			return cached, nil
		}

		status := p.check(ctx)

		p.mu.Lock()
		p.status = status
		p.mu.Unlock()
		return status, nil
	})

	return v.(types.PortReachability)
}

// Start runs the probe in the background so the first address in a batch does
// not pay for it.
func (p *PortProbe) Start(ctx context.Context) {
	go p.Status(ctx)
}

// Cached returns the current status without probing.
func (p *PortProbe) Cached() types.PortReachability {
	if p.disabled {
		return types.PortOpen
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *PortProbe) check(ctx context.Context) types.PortReachability {
	// detached from the first caller's cancellation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		slog.WarnContext(ctx, "outbound smtp port unreachable, smtp probing disabled",
			"addr", p.addr,
			"error", err,
			"elapsed", time.Since(start).String(),
		)
		return types.PortBlocked
	}
	conn.Close()

	slog.InfoContext(ctx, "outbound smtp port reachable",
		"addr", p.addr,
		"elapsed", time.Since(start).String(),
	)
	return types.PortOpen
}
