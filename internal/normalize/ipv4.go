package normalize

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// ipv4Assignment is one attributed address.
type ipv4Assignment struct {
	Addr   string
	Prefix models.OptInt
}

// attributeIPv4 maps ifIndex to a management address using four sources in
// fallback order: the legacy ipAdEnt table, the ipAddressIfIndex instance
// encoding, OSPF interface addresses, and finally route-table prefixes for
// mask derivation. Later sources only fill ifIndexes the earlier ones
// missed; masks from the legacy table win over route-derived ones.
func attributeIPv4(rv snmp.RawValues) map[int]ipv4Assignment {
	ipIndex := map[string]int{}  // dotted quad -> ifIndex
	ipMask := map[string]string{} // dotted quad -> dotted mask

	// (1) Legacy IP-MIB ipAdEnt*. The address table suffix carries the IP.
	for _, row := range rv.Rows(snmp.OIDIpAdEntIfIndex) {
		ip := lastQuad(row.Suffix)
		if !usableIPv4(ip) {
			continue
		}
		if idx, ok := row.Value.Int(); ok {
			ipIndex[ip] = idx
		}
	}
	for _, row := range rv.Rows(snmp.OIDIpAdEntNetMask) {
		ip := lastQuad(row.Suffix)
		if !usableIPv4(ip) {
			continue
		}
		if mask := normalizeIPv4Value(row.Value); mask != "" {
			ipMask[ip] = mask
		}
	}

	// (2) ipAddressIfIndex: the IPv4 instance suffix is 1.4.a.b.c.d with
	// the ifIndex as the value.
	for _, row := range rv.Rows(snmp.OIDIpAddressIfIndex) {
		ip, ok := quadAfterTypeLen(row.Suffix)
		if !ok || !usableIPv4(ip) {
			continue
		}
		idx, ok := row.Value.Int()
		if !ok {
			continue
		}
		if _, seen := ipIndex[ip]; !seen {
			ipIndex[ip] = idx
		}
	}

	// (3) OSPF-MIB ospfIfIpAddress: suffix is a.b.c.d.<ifIndex>...
	for _, row := range rv.Rows(snmp.OIDOspfIfIpAddress) {
		parts := splitInts(row.Suffix)
		if len(parts) < 5 {
			continue
		}
		ip := fmt.Sprintf("%d.%d.%d.%d", parts[0], parts[1], parts[2], parts[3])
		if !usableIPv4(ip) {
			continue
		}
		if _, seen := ipIndex[ip]; !seen {
			ipIndex[ip] = parts[4]
		}
	}

	// (4) Route instances fill in missing masks: pick the most specific
	// route whose network contains the address.
	routes := routePrefixes(rv)
	for ip := range ipIndex {
		if _, have := ipMask[ip]; have {
			continue
		}
		ipInt, ok := ipToInt(ip)
		if !ok {
			continue
		}
		for _, r := range routes {
			maskInt := uint32(0)
			if r.bits > 0 {
				maskInt = ^uint32(0) << (32 - r.bits)
			}
			if r.bits == 0 || ipInt&maskInt == r.net&maskInt {
				ipMask[ip] = bitsToMask(r.bits)
				break
			}
		}
	}

	// One address per ifIndex; iterate in numeric address order so the
	// winner is deterministic when a port carries several.
	ips := make([]string, 0, len(ipIndex))
	for ip := range ipIndex {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool {
		a, _ := ipToInt(ips[i])
		b, _ := ipToInt(ips[j])
		return a < b
	})

	out := map[int]ipv4Assignment{}
	for _, ip := range ips {
		idx := ipIndex[ip]
		if _, taken := out[idx]; taken {
			continue
		}
		a := ipv4Assignment{Addr: ip}
		if mask, ok := ipMask[ip]; ok {
			if bits, ok := maskToPrefix(mask); ok {
				a.Prefix = models.IntOf(bits)
			}
		}
		out[idx] = a
	}
	return out
}

type routePrefix struct {
	net  uint32
	bits int
}

// routePrefixes parses IP-FORWARD-MIB instance suffixes, which embed
// <addrType=1>.<addrLen=4>.<a>.<b>.<c>.<d>.<prefixLen> at a vendor-variant
// offset, and returns them most specific first.
func routePrefixes(rv snmp.RawValues) []routePrefix {
	var routes []routePrefix
	for _, row := range rv.Rows(snmp.OIDRouteInstances) {
		parts := splitInts(row.Suffix)
		for i := 0; i+6 < len(parts); i++ {
			if parts[i] != 1 || parts[i+1] != 4 {
				continue
			}
			bits := parts[i+6]
			if bits < 0 || bits > 32 {
				break
			}
			ip := fmt.Sprintf("%d.%d.%d.%d", parts[i+2], parts[i+3], parts[i+4], parts[i+5])
			n, ok := ipToInt(ip)
			if !ok {
				break
			}
			routes = append(routes, routePrefix{net: n, bits: bits})
			break
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].bits > routes[j].bits })
	return routes
}

// usableIPv4 rejects addresses that are meaningless on a switch port:
// loopback, unspecified, link-local, multicast, reserved, broadcast.
func usableIPv4(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return false
	}
	switch {
	case addr.IsLoopback(),
		addr.IsUnspecified(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast():
		return false
	}
	if ip == "255.255.255.255" {
		return false
	}
	// 240/4 reserved block.
	if b := addr.As4(); b[0] >= 240 {
		return false
	}
	return true
}

// normalizeIPv4Value renders an SNMP IpAddress payload as a dotted quad.
// Some agents return the four raw octets instead of a printable string.
func normalizeIPv4Value(v snmp.Value) string {
	if s, ok := v.String(); ok {
		parts := strings.Split(s, ".")
		if len(parts) == 4 && allDigits(parts) {
			return s
		}
	}
	if b, ok := v.Bytes(); ok && len(b) == 4 {
		return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
	}
	return ""
}

func allDigits(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// lastQuad returns the trailing a.b.c.d of an instance suffix.
func lastQuad(suffix string) string {
	parts := strings.Split(suffix, ".")
	if len(parts) < 4 {
		return ""
	}
	return strings.Join(parts[len(parts)-4:], ".")
}

// quadAfterTypeLen finds the 1.4.a.b.c.d encoding inside a suffix.
func quadAfterTypeLen(suffix string) (string, bool) {
	parts := splitInts(suffix)
	for i := 0; i+5 < len(parts); i++ {
		if parts[i] == 1 && parts[i+1] == 4 {
			return fmt.Sprintf("%d.%d.%d.%d", parts[i+2], parts[i+3], parts[i+4], parts[i+5]), true
		}
	}
	return "", false
}

func splitInts(suffix string) []int {
	fields := strings.Split(suffix, ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

func ipToInt(ip string) (uint32, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func bitsToMask(bits int) string {
	if bits <= 0 {
		return "0.0.0.0"
	}
	if bits >= 32 {
		return "255.255.255.255"
	}
	mask := ^uint32(0) << (32 - bits)
	return fmt.Sprintf("%d.%d.%d.%d", mask>>24&0xFF, mask>>16&0xFF, mask>>8&0xFF, mask&0xFF)
}

// maskToPrefix converts a dotted mask to prefix bits, rejecting
// non-contiguous masks.
func maskToPrefix(mask string) (int, bool) {
	m, ok := ipToInt(mask)
	if !ok {
		return 0, false
	}
	bits := 0
	for m != 0 && m&0x80000000 != 0 {
		bits++
		m <<= 1
	}
	if m != 0 {
		return 0, false
	}
	return bits, true
}
