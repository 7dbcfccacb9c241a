// Package netdiscover resolves the IPv4 address bound to a named network
// interface, polling until it appears. spec.md §7 treats a missing
// interface address as "not an error but a busy-wait loop at startup
// polling every 4 s until both interfaces report an address" — there is
// no fatal failure mode here, only patience.
//
// Grounded on the teacher's getInterfaceIP (clients/hpsdr/main.go), which
// walks net.Interface.Addrs() the same way; restructured into a blocking
// poll loop rather than a single best-effort lookup.
package netdiscover

import (
	"context"
	"fmt"
	"net"
	"time"
)

// pollInterval matches the original program's 4-second interface-polling
// loop (spec.md §7).
const pollInterval = 4 * time.Second

// Interface pairs a network interface name with its resolved IPv4
// address.
type Interface struct {
	Name string
	Addr net.IP
}

// InterfaceIP returns the first non-loopback IPv4 address bound to name,
// or an error if the interface has none yet.
func InterfaceIP(name string) (net.IP, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("netdiscover: interface %s not found: %w", name, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("netdiscover: addresses for %s: %w", name, err)
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4, nil
		}
	}

	return nil, fmt.Errorf("netdiscover: no IPv4 address on %s", name)
}

// Wait blocks, polling every pollInterval, until both named interfaces
// report an address or ctx is done.
func Wait(ctx context.Context, hl2Name, wifiName string) (hl2, wifi Interface, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		hl2IP, hl2Err := InterfaceIP(hl2Name)
		wifiIP, wifiErr := InterfaceIP(wifiName)
		if hl2Err == nil && wifiErr == nil {
			return Interface{Name: hl2Name, Addr: hl2IP}, Interface{Name: wifiName, Addr: wifiIP}, nil
		}

		select {
		case <-ctx.Done():
			return Interface{}, Interface{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
