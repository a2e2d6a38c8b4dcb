// File: transport/tcp/tcp.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Package tcp implements the TCP transport (spec.md C1), generalized from
// the teacher's transport/tcp/listener.go accept loop and
// internal/transport/transport_linux.go raw-socket handling into the
// api.Transport/api.Listener/api.Dialer contracts.

package tcp

import (
	"fmt"
	"net"
	"strconv"

	"github.com/hioframe/hioframe/api"
)

func peerKeyFromAddr(addr net.Addr) api.PeerKey {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return api.PeerKey{IP: addr.String()}
	}
	return api.PeerKey{IP: tcpAddr.IP.String(), Service: strconv.Itoa(tcpAddr.Port)}
}

// splitHostPort separates an "host:port" address, tolerating an empty host
// (":port", meaning all interfaces).
func splitHostPort(addr string) (host, port string, err error) {
	host, port, err = net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("tcp: invalid address %q: %w", addr, err)
	}
	return host, port, nil
}

// resolveIPv4 resolves host to its 4-byte IPv4 representation.
func resolveIPv4(host string) ([]byte, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("tcp: cannot resolve host %q", host)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("tcp: host %q is not IPv4", host)
	}
	return ip4, nil
}

func ipv4String(addr [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3])
}
