package connectivity

import (
	"context"
	"net"
	"time"
)

// Probe answers a single reachability question. Implementations must not
// panic; anything that prevents a definite answer degrades to StateUnknown.
type Probe interface {
	Check(ctx context.Context) State
}

// DialProbe checks reachability by opening a TCP connection to a well-known
// endpoint, typically the remote store's own host.
type DialProbe struct {
	Endpoint string
	Timeout  time.Duration
}

// Check dials the endpoint. A successful connection means online; a dial
// failure means offline. A missing endpoint or a cancelled context yields
// unknown rather than a guess.
func (p *DialProbe) Check(ctx context.Context) State {
	if p.Endpoint == "" {
		return StateUnknown
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", p.Endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return StateUnknown
		}
		return StateOffline
	}
	_ = conn.Close()
	return StateOnline
}
