package probes

import (
	"context"
	"fmt"
	"net"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/user/nsmon/internal/util"
)

// AllAdapters disables adapter filtering.
const AllAdapters = "all"

const statusEstablished = "ESTABLISHED"

// Connection is the subset of an inet connection the port check needs.
type Connection struct {
	LocalIP   string
	LocalPort uint32
	Status    string
}

// Adapter is a network interface with its bound addresses.
type Adapter struct {
	Name  string
	IPv4  []string
	Other []string
}

// ConnectionLister enumerates inet connections.
type ConnectionLister func(ctx context.Context) ([]Connection, error)

// AdapterLister enumerates network adapters.
type AdapterLister func(ctx context.Context) ([]Adapter, error)

// PortScanner looks for established connections on a local port.
type PortScanner struct {
	connections ConnectionLister
	adapters    AdapterLister
}

// NewPortScanner creates a scanner. Nil listers use gopsutil.
func NewPortScanner(connections ConnectionLister, adapters AdapterLister) *PortScanner {
	if connections == nil {
		connections = ListConnections
	}
	if adapters == nil {
		adapters = ListAdapters
	}
	return &PortScanner{
		connections: connections,
		adapters:    adapters,
	}
}

// Scan reports whether any established connection uses port as its local
// port. When adapter is not "all", the local address must also be one of
// that adapter's IPv4 addresses. Adapter membership is resolved on every
// call. Enumeration failures yield false.
func (s *PortScanner) Scan(ctx context.Context, port int, adapter string) bool {
	var allowed map[string]bool
	if adapter != "" && adapter != AllAdapters {
		ips, err := s.adapterIPs(ctx, adapter)
		if err != nil {
			util.Debug("Adapter lookup for %s failed: %v", adapter, err)
			return false
		}
		allowed = ips
	}

	conns, err := s.connections(ctx)
	if err != nil {
		util.Debug("Connection scan failed: %v", err)
		return false
	}

	for _, conn := range conns {
		if conn.Status != statusEstablished || conn.LocalPort != uint32(port) {
			continue
		}
		if allowed != nil && !allowed[conn.LocalIP] {
			continue
		}
		return true
	}

	return false
}

func (s *PortScanner) adapterIPs(ctx context.Context, name string) (map[string]bool, error) {
	adapters, err := s.adapters(ctx)
	if err != nil {
		return nil, err
	}

	ips := make(map[string]bool)
	for _, a := range adapters {
		if a.Name != name {
			continue
		}
		for _, ip := range a.IPv4 {
			ips[ip] = true
		}
	}
	return ips, nil
}

// ListConnections enumerates inet connections with gopsutil.
func ListConnections(ctx context.Context) ([]Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	conns := make([]Connection, 0, len(stats))
	for _, c := range stats {
		conns = append(conns, Connection{
			LocalIP:   c.Laddr.IP,
			LocalPort: c.Laddr.Port,
			Status:    c.Status,
		})
	}
	return conns, nil
}

// ListAdapters enumerates network interfaces with gopsutil.
func ListAdapters(ctx context.Context) ([]Adapter, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list adapters: %w", err)
	}

	adapters := make([]Adapter, 0, len(ifaces))
	for _, iface := range ifaces {
		a := Adapter{Name: iface.Name}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil {
				continue
			}
			if ip.To4() != nil {
				a.IPv4 = append(a.IPv4, ip.String())
			} else {
				a.Other = append(a.Other, ip.String())
			}
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
