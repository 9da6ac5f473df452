package tor

import (
	"context"
	"net"
	"time"
)

// DefaultProbeTimeout is the connect timeout used to decide whether the
// daemon is listening.
const DefaultProbeTimeout = 3 * time.Second

// ProbePort reports whether a TCP connection to address can be opened
// within timeout. The connection is closed immediately.
func ProbePort(ctx context.Context, address string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// PortProber probes a fixed address. It satisfies the supervisor's
// prober capability.
type PortProber struct {
	Address string
	Timeout time.Duration
}

// NewPortProber creates a PortProber for address.
func NewPortProber(address string, timeout time.Duration) *PortProber {
	return &PortProber{Address: address, Timeout: timeout}
}

// Probe implements the supervisor prober.
func (p *PortProber) Probe(ctx context.Context) bool {
	return ProbePort(ctx, p.Address, p.Timeout)
}
