package telemetry

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// serviceType is the mDNS service advertised by interceptor nodes.
const serviceType = "_skeeterhawk._tcp"

// Node is a discovered interceptor telemetry endpoint.
type Node struct {
	Instance  string // advertised name, e.g. "skeeterhawk on bench-rig"
	Hostname  string // DNS hostname, e.g. "bench-rig.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Advertise registers this node's telemetry endpoint over mDNS and keeps
// the record alive until ctx is cancelled. It returns once the record is
// registered; teardown happens in the background.
func Advertise(ctx context.Context, instance string, port int, txt []string) error {
	server, err := zeroconf.Register(instance, serviceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register error: %w", err)
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Discover performs a blocking mDNS browse for interceptor telemetry
// services, deduplicating by hostname and port.
func Discover(timeoutSeconds int) ([]Node, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	// zeroconf closes the channel when the browse context expires.
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}

	seen := make(map[string]Node)
	for e := range entries {
		if e == nil {
			continue
		}
		addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
		addrs = append(addrs, e.AddrIPv4...)
		addrs = append(addrs, e.AddrIPv6...)

		key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
		seen[key] = Node{
			// Zeroconf escapes spaces in instance names.
			Instance:  strings.ReplaceAll(e.Instance, `\ `, " "),
			Hostname:  e.HostName,
			Addresses: addrs,
			Port:      e.Port,
			TXT:       append([]string{}, e.Text...),
		}
	}

	out := make([]Node, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out, nil
}
