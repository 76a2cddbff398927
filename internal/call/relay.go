package call

import (
	"net"
	"strings"
)

var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

// relayRecommended reports whether this host looks like it sits behind a
// VPN tunnel or carrier-grade NAT, where direct candidates rarely connect.
func relayRecommended() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		ips := make([]net.IP, 0, len(addrs))
		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				ips = append(ips, v.IP)
			case *net.IPAddr:
				ips = append(ips, v.IP)
			}
		}
		if looksTunneled(iface.Name, ips) {
			return true
		}
	}
	return false
}

// looksTunneled matches common VPN interface names (OpenVPN, WireGuard,
// WARP, PPP) and addresses in the 100.64.0.0/10 shared range.
func looksTunneled(name string, ips []net.IP) bool {
	name = strings.ToLower(name)
	for _, marker := range []string{"tun", "tap", "wg", "ppp", "warp"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	for _, ip := range ips {
		if cgnatBlock.Contains(ip) {
			return true
		}
	}
	return false
}
