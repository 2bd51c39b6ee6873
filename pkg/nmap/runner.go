package nmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultArgs is used when no arguments are given. "-oX -" keeps the report
// on stdout where ParseXML expects it.
const DefaultArgs = "-sS -sV -A -T4 -oX -"

// DefaultTimeout bounds a single host scan.
const DefaultTimeout = 180 * time.Second

// MaxExpandedAddresses is the largest CIDR expanded into single hosts.
const MaxExpandedAddresses = 4096

// Runner executes the nmap binary.
type Runner struct {
	Binary  string
	Timeout time.Duration
	// Args replaces DefaultArgs when a scan is started without arguments.
	Args string
}

// NewRunner returns a Runner using nmap from PATH.
func NewRunner() *Runner {
	return &Runner{Binary: "nmap", Timeout: DefaultTimeout}
}

// Output is the captured result of one invocation.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Scan runs nmap with args against target. A non-zero exit is not an error
// as long as something was written to stdout.
func (r *Runner) Scan(ctx context.Context, target, args string) (*Output, error) {
	if strings.TrimSpace(args) == "" {
		args = r.Args
	}
	if strings.TrimSpace(args) == "" {
		args = DefaultArgs
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(strings.Fields(args), target)
	cmd := exec.CommandContext(ctx, r.Binary, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("component", "nmap").Strs("argv", argv).Msg("Running nmap")
	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("nmap timed out after %s", timeout)
	}
	if err != nil && stdout.Len() == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return out, fmt.Errorf("nmap: %s", msg)
	}
	return out, nil
}

// ExpandTargets turns target into the list of addresses to scan. A CIDR
// block of at most MaxExpandedAddresses is expanded into its host addresses;
// anything else, including larger blocks, is returned as given.
func ExpandTargets(target string) []string {
	target = strings.TrimSpace(target)
	if !strings.Contains(target, "/") {
		return []string{target}
	}
	prefix, err := netip.ParsePrefix(target)
	if err != nil {
		return []string{target}
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 12 {
		return []string{target}
	}
	size := 1 << hostBits
	if size > MaxExpandedAddresses {
		return []string{target}
	}
	if size == 1 {
		return []string{prefix.Addr().String()}
	}

	out := make([]string, 0, size)
	addr := prefix.Addr()
	for i := 0; i < size; i++ {
		out = append(out, addr.String())
		addr = addr.Next()
	}
	// IPv4 blocks larger than /31 exclude network and broadcast addresses.
	if prefix.Addr().Is4() && size > 2 {
		out = out[1 : len(out)-1]
	}
	// IPv6 blocks exclude the subnet-router anycast address.
	if prefix.Addr().Is6() && size > 1 {
		out = out[1:]
	}
	return out
}
