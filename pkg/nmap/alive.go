package nmap

import (
	"context"
	"time"

	"github.com/go-ping/ping"
)

// Prober reports whether a host answers ICMP echo requests.
type Prober interface {
	Alive(ctx context.Context, ip string) bool
}

// ICMPProber pings hosts with go-ping. Unprivileged mode uses UDP sockets and
// works without root on Linux when net.ipv4.ping_group_range allows it.
type ICMPProber struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
}

// NewICMPProber returns a prober sending two echoes with a 2s budget.
func NewICMPProber() *ICMPProber {
	return &ICMPProber{Count: 2, Timeout: 2 * time.Second}
}

// Alive sends the configured echoes and reports whether any reply arrived.
// Setup failures count as alive so that nmap still gets a chance.
func (p *ICMPProber) Alive(ctx context.Context, ip string) bool {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		return true
	}
	pinger.SetPrivileged(p.Privileged)
	pinger.Count = p.Count
	pinger.Timeout = p.Timeout
	pinger.Interval = 200 * time.Millisecond

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return true
	}
	return pinger.Statistics().PacketsRecv > 0
}

// AlwaysAlive skips the pre-check.
type AlwaysAlive struct{}

// Alive always reports true.
func (AlwaysAlive) Alive(context.Context, string) bool { return true }
