package features

import "net"

// reservedNets are loopback, private and link-local ranges. A URL pointing at
// one of them is never a public website.
var reservedNets = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"169.254.0.0/16", // link-local / cloud metadata
		"0.0.0.0/8",
		"100.64.0.0/10", // carrier-grade NAT
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, ipNet, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, ipNet)
	}
	return nets
}()

func isReserved(ip net.IP) bool {
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
