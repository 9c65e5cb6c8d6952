package apcupsd

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the port apcupsd's NIS listens on unless configured otherwise.
const DefaultPort = 3551

// Target identifies one NIS endpoint.
type Target struct {
	Host string
	Port int
}

// ParseTarget parses "host:port", "host" or "[v6addr]:port". A missing port
// defaults to DefaultPort.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("empty host")
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port, or a bare IPv6 address.
		host = strings.Trim(s, "[]")
		if host == "" {
			return Target{}, fmt.Errorf("invalid host %q", s)
		}
		return Target{Host: host, Port: DefaultPort}, nil
	}
	if host == "" {
		return Target{}, fmt.Errorf("invalid host %q: missing hostname", s)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port in %q", s)
	}
	return Target{Host: host, Port: port}, nil
}

// ParseTargets parses every entry of hosts, failing on the first bad one.
// Entries naming the same endpoint are collapsed, keeping the first.
func ParseTargets(hosts []string) ([]Target, error) {
	targets := make([]Target, 0, len(hosts))
	seen := make(map[Target]bool, len(hosts))
	for _, h := range hosts {
		t, err := ParseTarget(h)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return targets, nil
}

// String returns the dialable "host:port" form, which is also used as the
// host label on every metric.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}
